package pivots

import (
	"math"
	"testing"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/analysistest"
	"elliott-analyzer/internal/models"
)

func TestFindPivots_ImpulseShape(t *testing.T) {
	series := analysistest.SeriesFromCloses(analysistest.ImpulseCloses())

	got := FindPivots(series, DefaultLeftBars, DefaultRightBars)

	want := []struct {
		index int
		kind  analysis.PivotKind
		price float64
	}{
		{4, analysis.PivotLow, 100},
		{8, analysis.PivotHigh, 110},
		{12, analysis.PivotLow, 104},
		{16, analysis.PivotHigh, 120.6},
		{20, analysis.PivotLow, 114.2},
		{24, analysis.PivotHigh, 124.2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d pivots, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Index != w.index || got[i].Kind != w.kind || math.Abs(got[i].Price-w.price) > 1e-9 {
			t.Errorf("pivot %d: expected %d/%s/%.2f, got %d/%s/%.2f",
				i, w.index, w.kind, w.price, got[i].Index, got[i].Kind, got[i].Price)
		}
		if !got[i].Timestamp.Equal(series[w.index].Timestamp) {
			t.Errorf("pivot %d: timestamp mismatch", i)
		}
	}
}

func TestFindPivots_ShortSeries(t *testing.T) {
	series := analysistest.SeriesFromCloses([]float64{1, 2, 3, 4, 5, 4, 3, 2})
	if got := FindPivots(series, 4, 4); got != nil {
		t.Errorf("expected no pivots for %d bars, got %v", len(series), got)
	}
}

func TestFindPivots_MonotonicSeries(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if got := FindPivots(analysistest.SeriesFromCloses(closes), 4, 4); len(got) != 0 {
		t.Errorf("expected no pivots on a monotonic series, got %d", len(got))
	}
}

func TestFindPivots_EqualHighsAreNotPivots(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 5, 4, 3, 2, 1, 0.5}
	for _, p := range FindPivots(analysistest.SeriesFromCloses(closes), 2, 2) {
		if p.Kind == analysis.PivotHigh {
			t.Errorf("plateau must not produce a strict high pivot, got %+v", p)
		}
	}
}

func TestFindPivots_BothKindsOnOneBar(t *testing.T) {
	series := models.Series{
		{High: 10, Low: 9},
		{High: 20, Low: 1},
		{High: 11, Low: 8},
	}
	got := FindPivots(series, 1, 1)
	if len(got) != 2 {
		t.Fatalf("expected a high and a low pivot on the outside bar, got %+v", got)
	}
	if got[0].Kind != analysis.PivotHigh || got[1].Kind != analysis.PivotLow {
		t.Errorf("expected high recorded before low, got %s then %s", got[0].Kind, got[1].Kind)
	}
}

func TestAlternate(t *testing.T) {
	in := []analysis.Pivot{
		{Index: 1, Kind: analysis.PivotLow, Price: 10},
		{Index: 3, Kind: analysis.PivotHigh, Price: 15},
		{Index: 5, Kind: analysis.PivotHigh, Price: 17},
		{Index: 7, Kind: analysis.PivotLow, Price: 12},
		{Index: 9, Kind: analysis.PivotLow, Price: 13},
		{Index: 11, Kind: analysis.PivotHigh, Price: 14},
	}

	got := Alternate(in)

	wantIdx := []int{1, 5, 7, 11}
	if len(got) != len(wantIdx) {
		t.Fatalf("expected %d pivots, got %+v", len(wantIdx), got)
	}
	for i, idx := range wantIdx {
		if got[i].Index != idx {
			t.Errorf("pivot %d: expected index %d, got %d", i, idx, got[i].Index)
		}
		if i > 0 && got[i].Kind == got[i-1].Kind {
			t.Errorf("pivots %d and %d share kind %s", i-1, i, got[i].Kind)
		}
	}
	if in[1].Price != 15 {
		t.Error("input pivots must not be modified")
	}
}
