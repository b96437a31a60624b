// Package analysistest provides series builders for tests of the analysis packages.
package analysistest

import (
	"time"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/models"
)

// Start is the timestamp of the first generated bar.
var Start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// HalfRange is the distance between close and high (and close and low) of generated bars.
const HalfRange = 0.5

// SeriesFromCloses builds hourly candles with high = close+HalfRange and low = close-HalfRange.
func SeriesFromCloses(closes []float64) models.Series {
	series := make(models.Series, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		series[i] = models.Candle{
			Timestamp: Start.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      c + HalfRange,
			Low:       c - HalfRange,
			Close:     c,
			Volume:    1000,
		}
	}
	return series
}

// Anchor is a fixed close price at a bar index.
type Anchor struct {
	Index int
	Close float64
}

// Interpolate returns n closes passing linearly through the anchors. Bars before the first anchor
// and after the last one continue with the given lead and tail slopes per bar.
func Interpolate(n int, anchors []Anchor, leadSlope, tailSlope float64) []float64 {
	closes := make([]float64, n)
	if len(anchors) == 0 {
		return closes
	}

	first, last := anchors[0], anchors[len(anchors)-1]
	for i := 0; i < n; i++ {
		switch {
		case i <= first.Index:
			closes[i] = first.Close + leadSlope*float64(first.Index-i)
		case i >= last.Index:
			closes[i] = last.Close + tailSlope*float64(i-last.Index)
		default:
			for k := 0; k < len(anchors)-1; k++ {
				a, b := anchors[k], anchors[k+1]
				if i >= a.Index && i <= b.Index {
					t := float64(i-a.Index) / float64(b.Index-a.Index)
					closes[i] = a.Close + t*(b.Close-a.Close)
					break
				}
			}
		}
	}
	return closes
}

// Pivots builds alternating pivots from prices, starting with the given kind. Bar indexes are
// spaced by five so the pivots look like real swing points.
func Pivots(first analysis.PivotKind, prices ...float64) []analysis.Pivot {
	out := make([]analysis.Pivot, len(prices))
	kind := first
	for i, p := range prices {
		idx := 4 + i*5
		out[i] = analysis.Pivot{
			Index:     idx,
			Kind:      kind,
			Price:     p,
			Timestamp: Start.Add(time.Duration(idx) * time.Hour),
		}
		kind = kind.Opposite()
	}
	return out
}

// ImpulseCloses is a 30-bar series rising in a clean five-wave shape and then falling. Swing
// extremes (after HalfRange) are 100, 110, 104, 120.6, 114.2 and 124.2 at bars 4, 8, 12, 16, 20
// and 24: wave 3 is the longest and every wave sits inside a Fibonacci band.
func ImpulseCloses() []float64 {
	return Interpolate(30, []Anchor{
		{Index: 4, Close: 100.5},
		{Index: 8, Close: 109.5},
		{Index: 12, Close: 104.5},
		{Index: 16, Close: 120.1},
		{Index: 20, Close: 114.7},
		{Index: 24, Close: 123.7},
	}, 1, -1)
}
