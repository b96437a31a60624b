package patterns

import "fmt"

// Thresholds are the structural limits used by the validators. Several of them are heuristics
// rather than classical Elliott rules, so they are kept configurable.
type Thresholds struct {
	// ABC guard: wave B may not retrace more than this multiple of wave A.
	MaxBRetrace float64 `mapstructure:"max_b_retrace"`

	ZigzagMinB float64 `mapstructure:"zigzag_min_b"`
	ZigzagMaxB float64 `mapstructure:"zigzag_max_b"`
	ZigzagMinC float64 `mapstructure:"zigzag_min_c"`
	ZigzagMaxC float64 `mapstructure:"zigzag_max_c"`

	FlatMinB float64 `mapstructure:"flat_min_b"`
	// B/A above this makes the flat "expanded".
	FlatRegularMaxB float64 `mapstructure:"flat_regular_max_b"`
	FlatMaxB        float64 `mapstructure:"flat_max_b"`
	FlatMinC        float64 `mapstructure:"flat_min_c"`
	FlatMaxC        float64 `mapstructure:"flat_max_c"`

	// Each contracting triangle leg must be below previous*TriangleDecay.
	TriangleDecay float64 `mapstructure:"triangle_decay"`
	// Each expanding triangle leg must be above previous*TriangleGrowth.
	TriangleGrowth float64 `mapstructure:"triangle_growth"`

	// A complex linking wave must be smaller than LinkingRatio times the average
	// segment amplitude of the components it joins.
	LinkingRatio float64 `mapstructure:"linking_ratio"`
	// MaxComponents caps double/triple three chains.
	MaxComponents int `mapstructure:"max_components"`
}

// DefaultThresholds returns the default validator thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxBRetrace:     1.382,
		ZigzagMinB:      0.382,
		ZigzagMaxB:      0.786,
		ZigzagMinC:      1.0,
		ZigzagMaxC:      1.618,
		FlatMinB:        0.90,
		FlatRegularMaxB: 1.0,
		FlatMaxB:        1.10,
		FlatMinC:        0.90,
		FlatMaxC:        1.10,
		TriangleDecay:   1.0,
		TriangleGrowth:  1.0,
		LinkingRatio:    0.5,
		MaxComponents:   3,
	}
}

// Validate checks the thresholds for internal consistency.
func (t Thresholds) Validate() error {
	if t.MaxBRetrace <= 0 {
		return fmt.Errorf("max_b_retrace must be positive")
	}
	if t.ZigzagMinB < 0 || t.ZigzagMinB > t.ZigzagMaxB {
		return fmt.Errorf("zigzag B range is invalid: [%.3f, %.3f]", t.ZigzagMinB, t.ZigzagMaxB)
	}
	if t.ZigzagMinC < 0 || t.ZigzagMinC > t.ZigzagMaxC {
		return fmt.Errorf("zigzag C range is invalid: [%.3f, %.3f]", t.ZigzagMinC, t.ZigzagMaxC)
	}
	if t.FlatMinB < 0 || t.FlatMinB > t.FlatRegularMaxB || t.FlatRegularMaxB > t.FlatMaxB {
		return fmt.Errorf("flat B range is invalid: [%.3f, %.3f, %.3f]", t.FlatMinB, t.FlatRegularMaxB, t.FlatMaxB)
	}
	if t.FlatMinC < 0 || t.FlatMinC > t.FlatMaxC {
		return fmt.Errorf("flat C range is invalid: [%.3f, %.3f]", t.FlatMinC, t.FlatMaxC)
	}
	if t.TriangleDecay <= 0 || t.TriangleGrowth <= 0 {
		return fmt.Errorf("triangle decay and growth must be positive")
	}
	if t.LinkingRatio <= 0 {
		return fmt.Errorf("linking_ratio must be positive")
	}
	if t.MaxComponents < 2 {
		return fmt.Errorf("max_components must be at least 2")
	}
	return nil
}
