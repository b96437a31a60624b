// Package signal turns the best pattern into a market trend and a trading recommendation.
package signal

import (
	"fmt"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/models"
)

// Action is the recommended trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// RiskLevel grades a recommendation by the confidence of its pattern.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PositionSize returns the suggested share of capital for the risk level.
func (r RiskLevel) PositionSize() string {
	switch r {
	case RiskLow:
		return "3-5% of capital"
	case RiskMedium:
		return "2-3% of capital"
	default:
		return "1-2% of capital"
	}
}

// Recommendation is the trading advice derived from the best pattern.
type Recommendation struct {
	Action       Action    `json:"action"`
	Risk         RiskLevel `json:"risk"`
	Confidence   float64   `json:"confidence"`
	Entry        float64   `json:"entry"`
	Targets      []float64 `json:"targets"`
	StopLoss     float64   `json:"stop_loss"`
	RiskReward   float64   `json:"risk_reward"`
	NextWave     string    `json:"next_wave,omitempty"`
	PositionSize string    `json:"position_size,omitempty"`
	Reason       string    `json:"reason"`
}

// Config holds the trend and recommendation settings.
type Config struct {
	// Bars back used as the raw trend reference close.
	TrendLookback int `mapstructure:"trend_lookback"`
	// Relative move beyond which the trend is not neutral.
	TrendBand float64 `mapstructure:"trend_band"`
	// Flip the raw trend when a confident corrective pattern leads the ranking.
	OverrideOnCorrective  bool    `mapstructure:"override_on_corrective"`
	OverrideMinConfidence float64 `mapstructure:"override_min_confidence"`
	LowRiskConfidence     float64 `mapstructure:"low_risk_confidence"`
	MediumRiskConfidence  float64 `mapstructure:"medium_risk_confidence"`
}

// DefaultConfig returns the default synthesizer settings.
func DefaultConfig() Config {
	return Config{
		TrendLookback:         20,
		TrendBand:             0.02,
		OverrideOnCorrective:  true,
		OverrideMinConfidence: 70,
		LowRiskConfidence:     85,
		MediumRiskConfidence:  75,
	}
}

// Validate checks the synthesizer settings.
func (c Config) Validate() error {
	if c.TrendLookback <= 0 {
		return fmt.Errorf("trend_lookback must be positive")
	}
	if c.TrendBand < 0 || c.TrendBand >= 1 {
		return fmt.Errorf("trend_band must be within [0, 1)")
	}
	if c.MediumRiskConfidence > c.LowRiskConfidence {
		return fmt.Errorf("medium_risk_confidence must not exceed low_risk_confidence")
	}
	return nil
}

// Synthesizer derives trend and recommendation. It holds only configuration.
type Synthesizer struct {
	cfg Config
}

// NewSynthesizer creates a new synthesizer.
func NewSynthesizer(cfg Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// RawTrend compares the last close with the close TrendLookback bars back.
func (s *Synthesizer) RawTrend(series models.Series) analysis.Direction {
	if len(series) == 0 {
		return analysis.Neutral
	}
	ref := len(series) - s.cfg.TrendLookback
	if ref < 0 {
		ref = 0
	}
	current, past := series.Last().Close, series[ref].Close

	switch {
	case current > past*(1+s.cfg.TrendBand):
		return analysis.Bullish
	case current < past*(1-s.cfg.TrendBand):
		return analysis.Bearish
	default:
		return analysis.Neutral
	}
}

// Trend returns the final and the raw trend. A confident corrective best pattern flips the raw
// trend when the override is enabled; a neutral trend stays neutral.
func (s *Synthesizer) Trend(series models.Series, best *analysis.Pattern) (trend, raw analysis.Direction) {
	raw = s.RawTrend(series)
	trend = raw
	if s.cfg.OverrideOnCorrective && best != nil && best.Family.IsCorrective() &&
		best.Confidence > s.cfg.OverrideMinConfidence {
		trend = raw.Opposite()
	}
	return trend, raw
}

// Risk grades a confidence value.
func (s *Synthesizer) Risk(confidence float64) RiskLevel {
	switch {
	case confidence > s.cfg.LowRiskConfidence:
		return RiskLow
	case confidence > s.cfg.MediumRiskConfidence:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Recommend builds the recommendation for the best pattern at the given price. Without a
// pattern the advice is to wait.
func (s *Synthesizer) Recommend(best *analysis.Pattern, price float64) Recommendation {
	if best == nil {
		return Recommendation{
			Action:  ActionWait,
			Risk:    RiskHigh,
			Entry:   price,
			Targets: []float64{},
			Reason:  "no clear Elliott Wave pattern",
		}
	}

	rec := Recommendation{
		Action:     ActionWait,
		Risk:       s.Risk(best.Confidence),
		Confidence: best.Confidence,
		Entry:      price,
		Targets:    []float64{},
		NextWave:   NextWave(*best),
	}
	rec.PositionSize = rec.Risk.PositionSize()

	switch best.Direction {
	case analysis.Bullish:
		rec.Action = ActionBuy
	case analysis.Bearish:
		rec.Action = ActionSell
	}

	if best.Targets != nil {
		rec.Entry = best.Targets.Entry
		rec.Targets = best.Targets.Levels()
		rec.StopLoss = best.Targets.StopLoss
		rec.RiskReward = best.Targets.RiskReward()
	}

	rec.Reason = fmt.Sprintf("%s %s pattern with %.0f%% confidence", best.Direction, describe(*best), best.Confidence)
	return rec
}

func describe(p analysis.Pattern) string {
	if p.Subtype == "" || p.Subtype == string(p.Family) {
		return string(p.Family)
	}
	return fmt.Sprintf("%s %s", p.Subtype, p.Family)
}

// NextWave names the wave expected to follow the pattern's last completed wave.
func NextWave(p analysis.Pattern) string {
	switch p.Family {
	case analysis.FamilyImpulse:
		return "wave A (correction begins)"
	case analysis.FamilyTriangle:
		return "thrust (post-triangle breakout)"
	case analysis.FamilyZigzag, analysis.FamilyFlat, analysis.FamilyComplex:
		return "wave 1 (new cycle)"
	default:
		return "transitional wave"
	}
}
