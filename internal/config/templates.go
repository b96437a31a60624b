package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Elliott Wave Analyzer Configuration
# Every key is optional; missing keys keep their defaults.

[analyzer]
# Bars on each side a pivot must dominate
left_bars = 4
right_bars = 4
# Minimum bars required for an analysis
min_bars = 20
# Minimum alternating pivots before patterns are scanned
min_pivots = 4
# Number of ranked patterns reported
top_n = 5

[analyzer.thresholds]
# Wave B may not retrace more than this multiple of wave A
max_b_retrace = 1.382
zigzag_min_b = 0.382
zigzag_max_b = 0.786
zigzag_min_c = 1.0
zigzag_max_c = 1.618
flat_min_b = 0.90
flat_regular_max_b = 1.0
flat_max_b = 1.10
flat_min_c = 0.90
flat_max_c = 1.10
triangle_decay = 1.0
triangle_growth = 1.0
# Linking waves must stay below this share of the average component segment
linking_ratio = 0.5
max_components = 3

[analyzer.signal]
# Bars back for the raw trend reference close
trend_lookback = 20
# Relative move beyond which the trend is not neutral
trend_band = 0.02
# Flip the trend when a confident corrective pattern ranks first
override_on_corrective = true
override_min_confidence = 70.0
low_risk_confidence = 85.0
medium_risk_confidence = 75.0

[analyzer.targets]
impulse_fibs = [0.382, 0.618, 1.0]
corrective_fibs = [0.382, 0.618, 0.786]
stop_buffer = 0.02
max_bearish_move = 0.95
max_levels = 3
level_patterns = 3

[scan]
# Default candle interval
interval = "4h"
# Bars fetched per symbol (50-1000)
limit = 200
# Symbols analyzed in parallel
concurrency = 4
# Scan results below this confidence are dropped
min_confidence = 75.0
# Number of USDT pairs by quote volume to scan
top_symbols = 20
compare_intervals = ["1h", "4h", "1d"]

[binance]
# Leave empty for the public endpoint
base_url = ""
# Optional: public market data needs no keys
api_key = ""
api_secret = ""
requests_per_second = 10.0
burst = 5
timeout = "15s"
max_retries = 3

[storage]
# SQLite database for candle cache, history and favorites
# path = "~/.config/elliott-analyzer/elliott.db"
# Number of saved analyses kept
history_size = 50
# How long cached candles are reused
cache_ttl = "5m"

[logging]
# Level: debug, info, warn, error
level = "info"
console = false
file = true
max_size = 20
max_backups = 5
max_age = 30

[ui]
color_enabled = true
date_format = "2006-01-02 15:04"
`

// createTemplateConfig writes a commented config file. A template already on disk is left
// untouched.
func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// TemplatePath returns where the config template lives for configDir.
func TemplatePath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
