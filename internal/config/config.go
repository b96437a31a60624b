// Package config provides configuration management for the analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Analyzer elliott.Config    `mapstructure:"analyzer"`
	Scan     ScanConfig        `mapstructure:"scan"`
	Binance  BinanceConfig     `mapstructure:"binance"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Logging  logging.LogConfig `mapstructure:"logging"`
	UI       UIConfig          `mapstructure:"ui"`

	// Path of the file the configuration was read from, empty for defaults.
	Path string `mapstructure:"-"`
}

// ScanConfig holds multi-symbol scan settings.
type ScanConfig struct {
	Interval      string   `mapstructure:"interval"`
	Limit         int      `mapstructure:"limit"`
	Concurrency   int      `mapstructure:"concurrency"`
	MinConfidence float64  `mapstructure:"min_confidence"`
	TopSymbols    int      `mapstructure:"top_symbols"`
	Intervals     []string `mapstructure:"compare_intervals"`
}

// BinanceConfig holds market data client settings. Keys are optional: public endpoints need none.
type BinanceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// StorageConfig holds SQLite store settings.
type StorageConfig struct {
	Path        string        `mapstructure:"path"`
	HistorySize int           `mapstructure:"history_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/elliott-analyzer"
	}
	return filepath.Join(home, ".config", "elliott-analyzer")
}

// Default returns the configuration used when no file overrides it.
func Default(configDir string) *Config {
	logCfg := logging.DefaultLogConfig()
	logCfg.FilePath = filepath.Join(configDir, "logs", "elliott.log")
	logCfg.Console = false

	return &Config{
		Analyzer: elliott.DefaultConfig(),
		Scan: ScanConfig{
			Interval:      "4h",
			Limit:         200,
			Concurrency:   4,
			MinConfidence: 75,
			TopSymbols:    20,
			Intervals:     []string{"1h", "4h", "1d"},
		},
		Binance: BinanceConfig{
			RequestsPerSecond: 10,
			Burst:             5,
			Timeout:           15 * time.Second,
			MaxRetries:        3,
		},
		Storage: StorageConfig{
			Path:        filepath.Join(configDir, "elliott.db"),
			HistorySize: 50,
			CacheTTL:    5 * time.Minute,
		},
		Logging: logCfg,
		UI: UIConfig{
			ColorEnabled: true,
			DateFormat:   "2006-01-02 15:04",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config.toml is replaced
// by a commented template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default(configDir)

	path, err := loadConfigFile(configDir, "config", cfg)
	if err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	cfg.Path = path

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadConfigFile decodes the named TOML file over target and returns its path. Keys absent from
// the file keep the values already in target; lists present in the file replace the defaults.
func loadConfigFile(configDir, name string, target interface{}) (string, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return "", createTemplateConfig(configDir, name)
		}
		return "", err
	}

	if err := v.Unmarshal(target, func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true }); err != nil {
		return "", err
	}
	return v.ConfigFileUsed(), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ELLIOTT_BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}
	if v := os.Getenv("ELLIOTT_BINANCE_API_SECRET"); v != "" {
		cfg.Binance.APISecret = v
	}
	if v := os.Getenv("ELLIOTT_BINANCE_BASE_URL"); v != "" {
		cfg.Binance.BaseURL = v
	}
	if v := os.Getenv("ELLIOTT_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("ELLIOTT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ELLIOTT_INTERVAL"); v != "" {
		cfg.Scan.Interval = v
	}
	if v := os.Getenv("ELLIOTT_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scan.MinConfidence = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Analyzer.Validate(); err != nil {
		return err
	}

	if c.Scan.Limit < 50 || c.Scan.Limit > 1000 {
		return fmt.Errorf("%w: scan.limit must be between 50 and 1000", errors.ErrConfigInvalid)
	}
	if c.Scan.Limit < c.Analyzer.MinBars {
		return fmt.Errorf("%w: scan.limit must cover analyzer.min_bars", errors.ErrConfigInvalid)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("%w: scan.concurrency must be at least 1", errors.ErrConfigInvalid)
	}
	if c.Scan.MinConfidence < 0 || c.Scan.MinConfidence > 100 {
		return fmt.Errorf("%w: scan.min_confidence must be between 0 and 100", errors.ErrConfigInvalid)
	}
	if c.Scan.TopSymbols < 1 {
		return fmt.Errorf("%w: scan.top_symbols must be at least 1", errors.ErrConfigInvalid)
	}

	if c.Binance.RequestsPerSecond <= 0 || c.Binance.Burst < 1 {
		return fmt.Errorf("%w: binance rate limit must be positive", errors.ErrConfigInvalid)
	}
	if c.Binance.MaxRetries < 0 {
		return fmt.Errorf("%w: binance.max_retries must be non-negative", errors.ErrConfigInvalid)
	}

	if c.Storage.HistorySize < 1 {
		return fmt.Errorf("%w: storage.history_size must be at least 1", errors.ErrConfigInvalid)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid log level: %s", errors.ErrConfigInvalid, c.Logging.Level)
	}

	return nil
}

// AnalyzerConfig returns the analysis pipeline configuration.
func (c *Config) AnalyzerConfig() elliott.Config {
	return c.Analyzer
}
