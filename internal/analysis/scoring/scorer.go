// Package scoring combines structural rules and Fibonacci fits into a pattern confidence score.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/fibonacci"
	"elliott-analyzer/internal/analysis/patterns"
)

// FamilyWeights defines the confidence contributions for one pattern family.
type FamilyWeights struct {
	Base      float64 `mapstructure:"base"`
	RuleBonus float64 `mapstructure:"rule_bonus"`
	PerFit    float64 `mapstructure:"per_fit"`
}

// Weights defines the weights for each family in the confidence score.
type Weights struct {
	Impulse FamilyWeights `mapstructure:"impulse"`
	// Applied when wave 3 is shorter than both waves 1 and 5.
	ShortestThirdPenalty float64 `mapstructure:"shortest_third_penalty"`
	// Applied when wave 3 is not the longest motive wave.
	NotLongestThirdPenalty float64 `mapstructure:"not_longest_third_penalty"`

	Zigzag FamilyWeights `mapstructure:"zigzag"`
	Flat   FamilyWeights `mapstructure:"flat"`

	TriangleContracting FamilyWeights `mapstructure:"triangle_contracting"`
	TriangleExpanding   FamilyWeights `mapstructure:"triangle_expanding"`
	// Added per same-direction leg pair where the later leg is below ShrinkRatio of the earlier.
	TriangleShrinkBonus float64 `mapstructure:"triangle_shrink_bonus"`
	TriangleShrinkRatio float64 `mapstructure:"triangle_shrink_ratio"`

	Complex FamilyWeights `mapstructure:"complex"`
}

// DefaultWeights returns the default confidence weights.
func DefaultWeights() Weights {
	return Weights{
		Impulse:                FamilyWeights{Base: 50, RuleBonus: 20, PerFit: 5},
		ShortestThirdPenalty:   15,
		NotLongestThirdPenalty: 5,
		Zigzag:                 FamilyWeights{Base: 70, PerFit: 8},
		Flat:                   FamilyWeights{Base: 65, PerFit: 10},
		TriangleContracting:    FamilyWeights{Base: 55, PerFit: 4},
		TriangleExpanding:      FamilyWeights{Base: 50, PerFit: 4},
		TriangleShrinkBonus:    8,
		TriangleShrinkRatio:    0.8,
		Complex:                FamilyWeights{Base: 50, PerFit: 8},
	}
}

// Validate checks that the weights are usable.
func (w Weights) Validate() error {
	families := map[string]FamilyWeights{
		"impulse":              w.Impulse,
		"zigzag":               w.Zigzag,
		"flat":                 w.Flat,
		"triangle_contracting": w.TriangleContracting,
		"triangle_expanding":   w.TriangleExpanding,
		"complex":              w.Complex,
	}
	for name, fw := range families {
		if fw.Base < 0 || fw.Base > 100 {
			return fmt.Errorf("%s base weight must be within [0, 100], got %.2f", name, fw.Base)
		}
		if fw.PerFit < 0 || fw.RuleBonus < 0 {
			return fmt.Errorf("%s bonuses must not be negative", name)
		}
	}
	if w.TriangleShrinkRatio <= 0 || w.TriangleShrinkRatio > 1 {
		return fmt.Errorf("triangle_shrink_ratio must be within (0, 1], got %.2f", w.TriangleShrinkRatio)
	}
	return nil
}

// Calculator scores candidate patterns. It is stateless and safe for concurrent use.
type Calculator struct {
	fib        *fibonacci.Scorer
	thresholds patterns.Thresholds
	weights    Weights
}

// NewCalculator creates a new confidence calculator.
func NewCalculator(fib *fibonacci.Scorer, th patterns.Thresholds, weights Weights) *Calculator {
	return &Calculator{
		fib:        fib,
		thresholds: th,
		weights:    weights,
	}
}

// Evaluate returns a copy of the pattern carrying its Fibonacci fits and confidence.
func (c *Calculator) Evaluate(p analysis.Pattern) analysis.Pattern {
	fits := c.fib.Score(p)
	return p.WithScore(fits, c.confidence(p, fits))
}

// Score returns the confidence of the pattern in [0, 100]. Any confidence already on the
// pattern is ignored.
func (c *Calculator) Score(p analysis.Pattern) float64 {
	return c.confidence(p, c.fib.Score(p))
}

func (c *Calculator) confidence(p analysis.Pattern, fits []analysis.FibFit) float64 {
	fw := c.familyWeights(p)
	valid := float64(fibonacci.CountValid(fits))

	score := fw.Base + fw.PerFit*valid
	if c.rulesHold(p) {
		score += fw.RuleBonus
	}

	switch p.Family {
	case analysis.FamilyImpulse:
		score -= c.impulsePenalty(p)
	case analysis.FamilyTriangle:
		score += c.triangleBonus(p)
	}

	return clamp(score, 0, 100)
}

func (c *Calculator) familyWeights(p analysis.Pattern) FamilyWeights {
	switch p.Family {
	case analysis.FamilyImpulse:
		return c.weights.Impulse
	case analysis.FamilyZigzag:
		return c.weights.Zigzag
	case analysis.FamilyFlat:
		return c.weights.Flat
	case analysis.FamilyTriangle:
		if p.Subtype == patterns.SubtypeExpanding {
			return c.weights.TriangleExpanding
		}
		return c.weights.TriangleContracting
	case analysis.FamilyComplex:
		return c.weights.Complex
	default:
		return FamilyWeights{}
	}
}

// rulesHold re-runs the family's structural validator.
func (c *Calculator) rulesHold(p analysis.Pattern) bool {
	switch p.Family {
	case analysis.FamilyImpulse:
		_, ok := patterns.ValidateImpulse(p.Pivots)
		return ok
	case analysis.FamilyZigzag:
		return patterns.ValidateZigzag(p.Pivots, c.thresholds)
	case analysis.FamilyFlat:
		_, ok := patterns.ValidateFlat(p.Pivots, c.thresholds)
		return ok
	case analysis.FamilyTriangle:
		_, ok := patterns.ValidateTriangle(p.Pivots, c.thresholds)
		return ok
	case analysis.FamilyComplex:
		var links []analysis.WaveSegment
		for _, s := range p.Segments {
			if strings.HasPrefix(s.Label, "X") {
				links = append(links, s)
			}
		}
		return patterns.ValidateComplex(p.Components, links, c.thresholds)
	default:
		return false
	}
}

func (c *Calculator) impulsePenalty(p analysis.Pattern) float64 {
	w1, ok1 := p.Segment("1")
	w3, ok3 := p.Segment("3")
	w5, ok5 := p.Segment("5")
	if !ok1 || !ok3 || !ok5 {
		return 0
	}
	switch {
	case w3.Length < w1.Length && w3.Length < w5.Length:
		return c.weights.ShortestThirdPenalty
	case w3.Length < w1.Length || w3.Length < w5.Length:
		return c.weights.NotLongestThirdPenalty
	default:
		return 0
	}
}

// triangleBonus rewards legs that shrink against the previous leg in the same direction:
// pairs (A, C), (B, D) and (C, E).
func (c *Calculator) triangleBonus(p analysis.Pattern) float64 {
	var bonus float64
	for j := 2; j < len(p.Segments); j++ {
		prev := p.Segments[j-2].Length
		if prev > 0 && p.Segments[j].Length < prev*c.weights.TriangleShrinkRatio {
			bonus += c.weights.TriangleShrinkBonus
		}
	}
	return bonus
}

// clamp restricts a value to the given range. NaN maps to the lower bound.
func clamp(value, minVal, maxVal float64) float64 {
	if math.IsNaN(value) || value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
