package elliott

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/analysistest"
	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	return a
}

// flatSeries swings through a regular flat: highs 100 and 99, lows 80 and 79, then rallies.
func flatSeries() models.Series {
	return analysistest.SeriesFromCloses(analysistest.Interpolate(30, []analysistest.Anchor{
		{Index: 4, Close: 99.5},
		{Index: 8, Close: 80.5},
		{Index: 12, Close: 98.5},
		{Index: 16, Close: 79.5},
	}, -1, 1))
}

func monotonicSeries(n int) models.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return analysistest.SeriesFromCloses(closes)
}

func TestAnalyze_ImpulseScenario(t *testing.T) {
	a := newTestAnalyzer(t)
	series := analysistest.SeriesFromCloses(analysistest.ImpulseCloses())

	res := a.Analyze(series)

	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", res.Status, res.Message)
	}
	if res.PivotCount != 6 || res.CandidateCount != 1 {
		t.Errorf("expected 6 pivots and 1 candidate, got %d and %d", res.PivotCount, res.CandidateCount)
	}
	best := res.Best()
	if best == nil || best.Family != analysis.FamilyImpulse {
		t.Fatalf("expected an impulse as best pattern, got %+v", best)
	}
	if best.Confidence < 70 {
		t.Errorf("expected confidence >= 70, got %.2f", best.Confidence)
	}
	if best.Direction != analysis.Bullish {
		t.Errorf("expected bullish impulse, got %s", best.Direction)
	}
	if math.Abs(res.CurrentPrice-118.7) > 1e-9 {
		t.Errorf("expected current price 118.7, got %.4f", res.CurrentPrice)
	}
	if res.Trend != analysis.Bullish || res.RawTrend != analysis.Bullish {
		t.Errorf("expected bullish trend, got %s (raw %s)", res.Trend, res.RawTrend)
	}

	rec := res.Recommendation
	if rec.Action != signal.ActionBuy {
		t.Errorf("expected BUY, got %s", rec.Action)
	}
	if len(rec.Targets) != 3 || rec.Targets[0] <= res.CurrentPrice {
		t.Errorf("expected first target above price, got %v", rec.Targets)
	}
	if rec.StopLoss >= res.CurrentPrice {
		t.Errorf("expected stop below price, got %.4f", rec.StopLoss)
	}
	if !res.Timestamp.Equal(series.Last().Timestamp) {
		t.Errorf("expected timestamp of last bar, got %s", res.Timestamp)
	}
	if len(res.DynamicLevels.Support) == 0 || len(res.DynamicLevels.Resistance) == 0 {
		t.Errorf("expected support and resistance levels, got %+v", res.DynamicLevels)
	}
}

func TestAnalyze_FlatScenario(t *testing.T) {
	a := newTestAnalyzer(t)

	res := a.Analyze(flatSeries())

	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", res.Status, res.Message)
	}
	best := res.Best()
	if best == nil || best.Family != analysis.FamilyFlat || best.Subtype != "regular" {
		t.Fatalf("expected a regular flat as best pattern, got %+v", best)
	}
	if best.Confidence < 75 {
		t.Errorf("expected confidence >= 75, got %.2f", best.Confidence)
	}
	// Raw trend is up, but a confident correction leads the ranking.
	if res.RawTrend != analysis.Bullish || res.Trend != analysis.Bearish {
		t.Errorf("expected bearish trend overriding bullish raw trend, got %s (raw %s)", res.Trend, res.RawTrend)
	}
	if best.Targets == nil || best.Projections["target"] == 0 {
		t.Error("expected targets and projections on the best pattern")
	}
}

func TestAnalyze_ShortSeries(t *testing.T) {
	a := newTestAnalyzer(t)
	series := monotonicSeries(10)

	res := a.Analyze(series)

	if res.Status != StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.Stage != StageValidating {
		t.Errorf("expected failure while validating, got %s", res.Stage)
	}
	if !errors.Is(res.Err, errors.ErrInvalidInput) {
		t.Errorf("expected invalid input error, got %v", res.Err)
	}
	if res.Recommendation.Action != signal.ActionWait || len(res.Patterns) != 0 {
		t.Error("expected WAIT and no patterns on error")
	}
}

func TestAnalyze_EmptySeries(t *testing.T) {
	res := newTestAnalyzer(t).Analyze(nil)
	if res == nil || res.Status != StatusError {
		t.Fatalf("expected error result for empty series, got %+v", res)
	}
}

func TestAnalyze_InvalidBars(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name      string
		mutate    func(models.Series)
		wantField string
		wantIndex int
	}{
		{"NaN close", func(s models.Series) { s[5].Close = math.NaN() }, "close", 5},
		{"zero open", func(s models.Series) { s[3].Open = 0 }, "open", 3},
		{"infinite high", func(s models.Series) { s[7].High = math.Inf(1) }, "high", 7},
		{"high below low", func(s models.Series) { s[9].High = s[9].Low - 1 }, "high", 9},
		{"negative volume", func(s models.Series) { s[2].Volume = -1 }, "volume", 2},
		{"duplicate timestamp", func(s models.Series) { s[11].Timestamp = s[10].Timestamp }, "timestamp", 11},
		{"timestamps out of order", func(s models.Series) { s[12].Timestamp = s[0].Timestamp }, "timestamp", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := analysistest.SeriesFromCloses(analysistest.ImpulseCloses())
			tt.mutate(series)

			res := a.Analyze(series)
			if res.Status != StatusError {
				t.Fatalf("expected error status, got %s", res.Status)
			}
			var inputErr *errors.InputError
			if !errors.As(res.Err, &inputErr) {
				t.Fatalf("expected InputError, got %T: %v", res.Err, res.Err)
			}
			if inputErr.Field != tt.wantField || inputErr.Index != tt.wantIndex {
				t.Errorf("expected %s at %d, got %s at %d", tt.wantField, tt.wantIndex, inputErr.Field, inputErr.Index)
			}
		})
	}
}

func TestAnalyze_MonotonicSeriesHasNoCandidates(t *testing.T) {
	a := newTestAnalyzer(t)

	res := a.Analyze(monotonicSeries(50))

	if res.Status != StatusInsufficientPivots {
		t.Fatalf("expected insufficient_pivots, got %s", res.Status)
	}
	if len(res.Patterns) != 0 || res.CandidateCount != 0 {
		t.Errorf("expected no patterns, got %d", len(res.Patterns))
	}
	if res.Recommendation.Action != signal.ActionWait {
		t.Errorf("expected WAIT, got %s", res.Recommendation.Action)
	}
	if res.RawTrend != analysis.Bullish {
		t.Errorf("expected bullish raw trend on a rising series, got %s", res.RawTrend)
	}
}

func TestAnalyze_RecoversFromPanic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Targets.ImpulseFibs = nil
	a := newAnalyzer(cfg, zerolog.Nop())

	res := a.Analyze(analysistest.SeriesFromCloses(analysistest.ImpulseCloses()))

	if res.Status != StatusError || res.Stage != StageProjecting {
		t.Fatalf("expected error at projecting, got %s at %s", res.Status, res.Stage)
	}
	if !errors.Is(res.Err, errors.ErrComputation) {
		t.Errorf("expected computation error, got %v", res.Err)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newTestAnalyzer(t)
	series := analysistest.SeriesFromCloses(analysistest.ImpulseCloses())

	first := a.Analyze(series)
	second := a.Analyze(series)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical results for identical input")
	}
}

func TestAnalyze_ConcurrentUse(t *testing.T) {
	a := newTestAnalyzer(t)
	series := flatSeries()
	want := a.Analyze(series)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Analyze(series)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if !reflect.DeepEqual(want, got) {
			t.Errorf("goroutine %d produced a different result", i)
		}
	}
}

func TestRank(t *testing.T) {
	ps := []analysis.Pattern{
		{Family: analysis.FamilyFlat, Confidence: 80, Pivots: []analysis.Pivot{{Index: 1}, {Index: 10}}},
		{Family: analysis.FamilyZigzag, Confidence: 80, Pivots: []analysis.Pivot{{Index: 2}, {Index: 10}}},
		{Family: analysis.FamilyImpulse, Confidence: 80, Pivots: []analysis.Pivot{{Index: 0}, {Index: 8}}},
		{Family: analysis.FamilyTriangle, Confidence: 90, Pivots: []analysis.Pivot{{Index: 0}, {Index: 5}}},
	}

	Rank(ps)

	want := []analysis.Family{analysis.FamilyTriangle, analysis.FamilyZigzag, analysis.FamilyFlat, analysis.FamilyImpulse}
	for i, f := range want {
		if ps[i].Family != f {
			t.Errorf("position %d: expected %s, got %s", i, f, ps[i].Family)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top n", func(c *Config) { c.TopN = 0 }},
		{"min bars below pivot window", func(c *Config) { c.MinBars = 5 }},
		{"min bars below trend lookback", func(c *Config) { c.Signal.TrendLookback = 40 }},
		{"bad thresholds", func(c *Config) { c.Thresholds.MaxComponents = 1 }},
		{"bad bands", func(c *Config) { c.Bands.Retracement = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
			if _, err := New(cfg, zerolog.Nop()); err == nil {
				t.Error("expected New to reject the config")
			}
		})
	}
}
