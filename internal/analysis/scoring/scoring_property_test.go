package scoring

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/analysistest"
	"elliott-analyzer/internal/analysis/patterns"
)

// patternGen generates arbitrary patterns of every family from random pivot prices. Most of
// them break the structural rules, which is the point: scores must stay bounded anyway.
func patternGen() gopter.Gen {
	families := []struct {
		family analysis.Family
		size   int
		labels []string
	}{
		{analysis.FamilyImpulse, 6, impulseLabels},
		{analysis.FamilyZigzag, 4, correctiveLabels},
		{analysis.FamilyFlat, 4, correctiveLabels},
		{analysis.FamilyTriangle, 6, triangleLabels},
		{analysis.FamilyComplex, 8, nil},
	}
	return gopter.CombineGens(
		gen.SliceOfN(8, gen.Float64Range(1, 500)),
		gen.IntRange(0, len(families)-1),
		gen.Bool(),
	).Map(func(vals []interface{}) analysis.Pattern {
		prices := vals[0].([]float64)
		f := families[vals[1].(int)]
		first := analysis.PivotLow
		if vals[2].(bool) {
			first = analysis.PivotHigh
		}
		pivots := analysistest.Pivots(first, prices[:f.size]...)
		return patterns.NewPattern(f.family, "", analysis.Bullish, pivots, f.labels)
	})
}

// Property: confidence is always within [0, 100] and scoring is idempotent.
func TestProperty_ConfidenceBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	c := newTestCalculator()

	properties.Property("confidence is within [0, 100]", prop.ForAll(
		func(p analysis.Pattern) bool {
			score := c.Score(p)
			return score >= 0 && score <= 100
		},
		patternGen(),
	))

	properties.Property("re-scoring yields the same confidence", prop.ForAll(
		func(p analysis.Pattern) bool {
			once := c.Evaluate(p)
			return c.Evaluate(once).Confidence == once.Confidence
		},
		patternGen(),
	))

	properties.TestingRun(t)
}
