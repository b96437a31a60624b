package elliott

import (
	"fmt"

	"elliott-analyzer/internal/analysis/fibonacci"
	"elliott-analyzer/internal/analysis/patterns"
	"elliott-analyzer/internal/analysis/pivots"
	"elliott-analyzer/internal/analysis/scoring"
	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/analysis/targets"
	"elliott-analyzer/internal/errors"
)

// Config holds every tunable of the analysis pipeline.
type Config struct {
	LeftBars  int `mapstructure:"left_bars"`
	RightBars int `mapstructure:"right_bars"`
	MinBars   int `mapstructure:"min_bars"`
	MinPivots int `mapstructure:"min_pivots"`
	TopN      int `mapstructure:"top_n"`

	Thresholds patterns.Thresholds `mapstructure:"thresholds"`
	Bands      fibonacci.Bands     `mapstructure:"bands"`
	Weights    scoring.Weights     `mapstructure:"weights"`
	Targets    targets.Config      `mapstructure:"targets"`
	Signal     signal.Config       `mapstructure:"signal"`
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() Config {
	return Config{
		LeftBars:   pivots.DefaultLeftBars,
		RightBars:  pivots.DefaultRightBars,
		MinBars:    20,
		MinPivots:  4,
		TopN:       5,
		Thresholds: patterns.DefaultThresholds(),
		Bands:      fibonacci.DefaultBands(),
		Weights:    scoring.DefaultWeights(),
		Targets:    targets.DefaultConfig(),
		Signal:     signal.DefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.LeftBars < 1 || c.RightBars < 1 {
		return fmt.Errorf("%w: pivot windows must be at least 1 bar", errors.ErrConfigInvalid)
	}
	if c.MinBars < c.LeftBars+c.RightBars+1 {
		return fmt.Errorf("%w: min_bars must cover one pivot window (%d)", errors.ErrConfigInvalid, c.LeftBars+c.RightBars+1)
	}
	if c.MinBars < c.Signal.TrendLookback {
		return fmt.Errorf("%w: min_bars must cover trend_lookback (%d)", errors.ErrConfigInvalid, c.Signal.TrendLookback)
	}
	if c.MinPivots < 2 {
		return fmt.Errorf("%w: min_pivots must be at least 2", errors.ErrConfigInvalid)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1", errors.ErrConfigInvalid)
	}

	checks := []struct {
		name string
		fn   func() error
	}{
		{"thresholds", c.Thresholds.Validate},
		{"bands", c.Bands.Validate},
		{"weights", c.Weights.Validate},
		{"targets", c.Targets.Validate},
		{"signal", c.Signal.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%w: %s: %v", errors.ErrConfigInvalid, check.name, err)
		}
	}
	return nil
}
