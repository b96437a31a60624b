// Package cli provides the command-line interface for the analyzer.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/config"
	"elliott-analyzer/internal/logging"
	"elliott-analyzer/internal/marketdata"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// MarketData fetches candles and symbol rankings from the exchange.
type MarketData interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	TopSymbols(ctx context.Context, n int) ([]models.Ticker, error)
}

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Market   MarketData
	Store    store.DataStore
	Cache    *store.CandleCache
	Analyzer *elliott.Analyzer
}

// Execute builds the root command and runs it until completion or interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{Logger: zerolog.Nop()}
	defer app.Close()

	return NewRootCmd(app).ExecuteContext(ctx)
}

// NewRootCmd creates the root command. Dependencies missing from app are built from the
// configuration before any command runs.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "elliott",
		Short: "Elliott Wave pattern analyzer for crypto markets",
		Long: `Elliott Wave Analyzer detects impulse, zigzag, flat, triangle and complex wave
patterns in candle data, scores them against Fibonacci relationships and turns the best
pattern into a trade recommendation with targets and a stop loss.

Market data comes from the Binance spot API or from CSV files. Analyses are kept in a
local history and favorite symbols can be scanned in one go.

Use 'elliott examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if app.Config == nil {
				configDir, _ := cmd.Flags().GetString("config")
				if err := app.setup(configDir, debug); err != nil {
					return err
				}
			}
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), logging.WithOperation(app.Logger, cmd.Name())))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/elliott-analyzer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging on stderr")

	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newExamplesCmd(app))

	return rootCmd
}

// setup loads the configuration and builds every dependency from it. A store that cannot be
// opened disables history, favorites and caching instead of failing.
func (a *App) setup(configDir string, debug bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Console = true
	}
	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(cfg.Logging)

	analyzer, err := elliott.New(cfg.AnalyzerConfig(), a.Logger)
	if err != nil {
		return err
	}
	a.Analyzer = analyzer

	a.Market = marketdata.NewClient(marketdata.ClientConfig{
		BaseURL:           cfg.Binance.BaseURL,
		APIKey:            cfg.Binance.APIKey,
		APISecret:         cfg.Binance.APISecret,
		RequestsPerSecond: cfg.Binance.RequestsPerSecond,
		Burst:             cfg.Binance.Burst,
		Timeout:           cfg.Binance.Timeout,
		MaxRetries:        cfg.Binance.MaxRetries,
	}, a.Logger)

	st, err := store.NewSQLiteStore(cfg.Storage.Path, cfg.Storage.HistorySize)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open store, history and caching disabled")
		return nil
	}
	a.Store = st
	a.Cache = store.NewCandleCache(st, cfg.Storage.CacheTTL, a.Logger)
	a.Logger.Debug().Str("path", cfg.Storage.Path).Msg("SQLite store initialized")
	return nil
}

// Close releases the store.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

func (a *App) requireStore() error {
	if a.Store == nil {
		return fmt.Errorf("local store unavailable, check storage.path in %s", config.TemplatePath(config.DefaultConfigDir()))
	}
	return nil
}

// candles loads the newest limit candles, through the cache when a store is available.
func (a *App) candles(ctx context.Context, symbol, interval string, limit int) (models.Series, bool, error) {
	if a.Market == nil {
		return nil, false, fmt.Errorf("market data client not configured")
	}
	if a.Cache != nil {
		candles, cached, err := a.Cache.Candles(ctx, symbol, interval, limit, a.Market.Klines)
		return candles, cached, err
	}
	candles, err := a.Market.Klines(ctx, symbol, interval, limit)
	return candles, false, err
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Elliott Wave Analyzer v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the analyzer configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			cfg := *app.Config
			if cfg.Binance.APISecret != "" {
				cfg.Binance.APISecret = "********"
			}
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, &cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			path := app.Config.Path
			if path == "" {
				configDir, _ := cmd.Flags().GetString("config")
				if configDir == "" {
					configDir = config.DefaultConfigDir()
				}
				path = config.TemplatePath(configDir)
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	a := cfg.Analyzer
	output.Bold("Analyzer")
	output.Printf("  Pivot window:    %d left / %d right\n", a.LeftBars, a.RightBars)
	output.Printf("  Min bars:        %d\n", a.MinBars)
	output.Printf("  Min pivots:      %d\n", a.MinPivots)
	output.Printf("  Top patterns:    %d\n", a.TopN)
	output.Println()

	output.Bold("Scan")
	output.Printf("  Interval:        %s\n", cfg.Scan.Interval)
	output.Printf("  Candles:         %d\n", cfg.Scan.Limit)
	output.Printf("  Concurrency:     %d\n", cfg.Scan.Concurrency)
	output.Printf("  Min confidence:  %.0f%%\n", cfg.Scan.MinConfidence)
	output.Printf("  Top symbols:     %d\n", cfg.Scan.TopSymbols)
	output.Printf("  Compare:         %v\n", cfg.Scan.Intervals)
	output.Println()

	output.Bold("Binance")
	baseURL := cfg.Binance.BaseURL
	if baseURL == "" {
		baseURL = "(default)"
	}
	output.Printf("  Base URL:        %s\n", baseURL)
	output.Printf("  API key:         %v\n", cfg.Binance.APIKey != "")
	output.Printf("  Rate limit:      %.0f/s (burst %d)\n", cfg.Binance.RequestsPerSecond, cfg.Binance.Burst)
	output.Printf("  Timeout:         %s\n", cfg.Binance.Timeout)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Storage.Path)
	output.Printf("  History size:    %d\n", cfg.Storage.HistorySize)
	output.Printf("  Cache TTL:       %s\n", cfg.Storage.CacheTTL)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %s\n", cfg.Logging.FilePath)
}
