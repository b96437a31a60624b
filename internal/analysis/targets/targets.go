// Package targets projects price targets, stop losses and dynamic support/resistance levels
// from scored patterns.
package targets

import (
	"fmt"
	"math"
	"sort"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/fibonacci"
	"elliott-analyzer/internal/errors"
)

// Config holds the projection multipliers.
type Config struct {
	// Multipliers of the longest segment for impulse targets, nearest first.
	ImpulseFibs []float64 `mapstructure:"impulse_fibs"`
	// Multipliers of the pattern range for corrective targets, nearest first.
	CorrectiveFibs []float64 `mapstructure:"corrective_fibs"`
	// Fractional buffer placed beyond the swing extreme for the stop loss.
	StopBuffer float64 `mapstructure:"stop_buffer"`
	// Largest fraction of entry a bearish target may move.
	MaxBearishMove float64 `mapstructure:"max_bearish_move"`
	// Number of support and resistance levels reported per side.
	MaxLevels int `mapstructure:"max_levels"`
	// Number of best patterns feeding dynamic levels.
	LevelPatterns int `mapstructure:"level_patterns"`
}

// DefaultConfig returns the default projection settings.
func DefaultConfig() Config {
	return Config{
		ImpulseFibs:    []float64{0.382, 0.618, 1.0},
		CorrectiveFibs: []float64{0.382, 0.618, 0.786},
		StopBuffer:     0.02,
		MaxBearishMove: 0.95,
		MaxLevels:      3,
		LevelPatterns:  3,
	}
}

// Validate checks the projection settings.
func (c Config) Validate() error {
	for name, fibs := range map[string][]float64{"impulse_fibs": c.ImpulseFibs, "corrective_fibs": c.CorrectiveFibs} {
		if len(fibs) != 3 {
			return fmt.Errorf("%s must hold exactly 3 multipliers", name)
		}
		prev := 0.0
		for _, f := range fibs {
			if f <= prev {
				return fmt.Errorf("%s must be positive and strictly increasing", name)
			}
			prev = f
		}
	}
	if c.StopBuffer <= 0 || c.StopBuffer >= 1 {
		return fmt.Errorf("stop_buffer must be within (0, 1)")
	}
	if c.MaxBearishMove <= 0 || c.MaxBearishMove >= 1 {
		return fmt.Errorf("max_bearish_move must be within (0, 1)")
	}
	if c.MaxLevels <= 0 || c.LevelPatterns <= 0 {
		return fmt.Errorf("max_levels and level_patterns must be positive")
	}
	return nil
}

// Projector derives targets from pattern geometry.
type Projector struct {
	cfg Config
}

// NewProjector creates a new projector.
func NewProjector(cfg Config) *Projector {
	return &Projector{cfg: cfg}
}

// Project computes entry, three targets and a stop loss for the pattern. For a bullish pattern
// stop < entry < t1 < t2 < t3; for a bearish one the order is reversed and every target stays
// above zero.
func (p *Projector) Project(pattern analysis.Pattern, entry float64) (analysis.Targets, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return analysis.Targets{}, errors.NewInputError("entry", -1, fmt.Sprintf("entry price must be positive, got %v", entry))
	}
	sign := pattern.Direction.Sign()
	if sign == 0 {
		return analysis.Targets{}, errors.NewComputationError("projecting",
			fmt.Errorf("pattern %s has no direction", pattern.Family))
	}

	fibs, move := p.cfg.CorrectiveFibs, pattern.Range()
	if pattern.Family == analysis.FamilyImpulse {
		fibs, move = p.cfg.ImpulseFibs, longestSegment(pattern)
	}
	if move <= 0 {
		return analysis.Targets{}, errors.NewComputationError("projecting",
			fmt.Errorf("pattern %s has zero amplitude", pattern.Family))
	}
	if sign < 0 {
		move = math.Min(move, p.cfg.MaxBearishMove*entry/fibs[len(fibs)-1])
	}

	t := analysis.Targets{
		Entry:   entry,
		Target1: entry + sign*fibs[0]*move,
		Target2: entry + sign*fibs[1]*move,
		Target3: entry + sign*fibs[2]*move,
	}

	if sign > 0 {
		swing := latestPivot(pattern, analysis.PivotLow, entry)
		t.StopLoss = math.Min(swing, entry) * (1 - p.cfg.StopBuffer)
	} else {
		swing := latestPivot(pattern, analysis.PivotHigh, entry)
		t.StopLoss = math.Max(swing, entry) * (1 + p.cfg.StopBuffer)
	}

	return t, nil
}

// Apply returns a copy of the pattern carrying its targets and wave projections.
func (p *Projector) Apply(pattern analysis.Pattern, entry float64) (analysis.Pattern, error) {
	t, err := p.Project(pattern, entry)
	if err != nil {
		return pattern, err
	}
	return pattern.WithTargets(t, Projections(pattern)), nil
}

func longestSegment(pattern analysis.Pattern) float64 {
	var longest float64
	for _, s := range pattern.Segments {
		longest = math.Max(longest, s.Length)
	}
	return longest
}

// latestPivot returns the price of the most recent pivot of the given kind, or fallback.
func latestPivot(pattern analysis.Pattern, kind analysis.PivotKind, fallback float64) float64 {
	for i := len(pattern.Pivots) - 1; i >= 0; i-- {
		if pattern.Pivots[i].Kind == kind {
			return pattern.Pivots[i].Price
		}
	}
	return fallback
}

// Projections returns the classic wave projections measured from the pattern's own pivots.
// Impulses project the next leg by wave 1; zigzags and flats project wave C from the end of B;
// triangles project a breakout by their height; complexes project a reversal by the range of W.
func Projections(pattern analysis.Pattern) map[string]float64 {
	pv := pattern.Pivots
	if len(pv) < 2 {
		return nil
	}
	last := pv[len(pv)-1].Price

	switch pattern.Family {
	case analysis.FamilyImpulse:
		w1 := math.Abs(pv[1].Price - pv[0].Price)
		dir := 1.0
		if pv[0].Kind == analysis.PivotHigh {
			dir = -1
		}
		return map[string]float64{
			"fib618":  last + dir*w1*0.618,
			"fib1000": last + dir*w1*1.000,
			"fib1618": last + dir*w1*1.618,
		}
	case analysis.FamilyZigzag, analysis.FamilyFlat:
		if len(pv) < 4 {
			return nil
		}
		a := math.Abs(pv[1].Price - pv[0].Price)
		dir := 1.0
		if pv[3].Price < pv[2].Price {
			dir = -1
		}
		start := pv[2].Price
		if pattern.Family == analysis.FamilyFlat {
			return map[string]float64{"target": start + dir*a}
		}
		return map[string]float64{
			"fib1000": start + dir*a*1.000,
			"fib1272": start + dir*a*1.272,
			"fib1618": start + dir*a*1.618,
		}
	case analysis.FamilyTriangle:
		height := pattern.Range()
		return map[string]float64{
			"breakout_up":   last + height,
			"breakout_down": last - height,
		}
	case analysis.FamilyComplex:
		if len(pattern.Components) == 0 {
			return nil
		}
		return map[string]float64{
			"target": last + pattern.Direction.Sign()*pattern.Components[0].Range(),
		}
	default:
		return nil
	}
}

// DynamicLevels derives support and resistance around price from the pivots and Fibonacci
// retracements of the best patterns. Patterns are expected best first; the first one's targets
// are reported as level targets.
func (p *Projector) DynamicLevels(patterns []analysis.Pattern, price float64) analysis.DynamicLevels {
	levels := analysis.DynamicLevels{
		Support:    []float64{},
		Resistance: []float64{},
		Targets:    []float64{},
	}
	if len(patterns) == 0 || price <= 0 {
		return levels
	}

	n := p.cfg.LevelPatterns
	if n > len(patterns) {
		n = len(patterns)
	}

	var candidates []float64
	for _, pattern := range patterns[:n] {
		for _, pv := range pattern.Pivots {
			candidates = append(candidates, pv.Price)
		}
		if len(pattern.Pivots) == 0 {
			continue
		}
		hi, lo := pattern.Pivots[0].Price, pattern.Pivots[0].Price
		for _, pv := range pattern.Pivots {
			hi = math.Max(hi, pv.Price)
			lo = math.Min(lo, pv.Price)
		}
		uptrend := pattern.LastPivot().Kind == analysis.PivotHigh
		fib := fibonacci.RetracementLevels(hi, lo, uptrend, fibonacci.DefaultRetracementRatios)
		candidates = append(candidates, fib.Values(fibonacci.DefaultRetracementRatios)...)
	}

	for _, c := range dedupe(candidates) {
		switch {
		case c < price:
			levels.Support = append(levels.Support, c)
		case c > price:
			levels.Resistance = append(levels.Resistance, c)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels.Support)))
	sort.Float64s(levels.Resistance)
	if len(levels.Support) > p.cfg.MaxLevels {
		levels.Support = levels.Support[:p.cfg.MaxLevels]
	}
	if len(levels.Resistance) > p.cfg.MaxLevels {
		levels.Resistance = levels.Resistance[:p.cfg.MaxLevels]
	}

	if best := patterns[0]; best.Targets != nil {
		levels.Targets = best.Targets.Levels()
	}
	return levels
}

func dedupe(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var out []float64
	for _, v := range sorted {
		if len(out) > 0 && math.Abs(v-out[len(out)-1]) < 1e-9 {
			continue
		}
		out = append(out, v)
	}
	return out
}
