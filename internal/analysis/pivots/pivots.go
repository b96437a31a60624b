// Package pivots extracts swing highs and lows from a price series.
package pivots

import (
	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/models"
)

// Default look-around window on each side of a candidate bar.
const (
	DefaultLeftBars  = 4
	DefaultRightBars = 4
)

// FindPivots marks every bar whose high (low) is strictly above (below) all other highs (lows)
// in [i-leftBars, i+rightBars]. A bar can be both a high and a low pivot; the high is recorded
// first. Pivots are returned in ascending index order.
//
// A series shorter than leftBars+rightBars+1 yields no pivots.
func FindPivots(series models.Series, leftBars, rightBars int) []analysis.Pivot {
	if leftBars < 0 || rightBars < 0 || len(series) < leftBars+rightBars+1 {
		return nil
	}

	out := make([]analysis.Pivot, 0, len(series)/(leftBars+rightBars+1)+1)
	for i := leftBars; i < len(series)-rightBars; i++ {
		current := series[i]
		isHigh, isLow := true, true

		for j := i - leftBars; j <= i+rightBars; j++ {
			if j == i {
				continue
			}
			if series[j].High >= current.High {
				isHigh = false
			}
			if series[j].Low <= current.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			out = append(out, analysis.Pivot{
				Index:     i,
				Kind:      analysis.PivotHigh,
				Price:     current.High,
				Timestamp: current.Timestamp,
			})
		}
		if isLow {
			out = append(out, analysis.Pivot{
				Index:     i,
				Kind:      analysis.PivotLow,
				Price:     current.Low,
				Timestamp: current.Timestamp,
			})
		}
	}

	return out
}

// Alternate collapses runs of same-kind pivots into the most extreme one so that the result
// strictly alternates between highs and lows. Ties keep the earliest pivot.
func Alternate(pivots []analysis.Pivot) []analysis.Pivot {
	if len(pivots) == 0 {
		return nil
	}

	out := make([]analysis.Pivot, 0, len(pivots))
	out = append(out, pivots[0])

	for _, p := range pivots[1:] {
		last := &out[len(out)-1]
		if p.Kind != last.Kind {
			out = append(out, p)
			continue
		}
		if p.Kind == analysis.PivotHigh && p.Price > last.Price {
			*last = p
		} else if p.Kind == analysis.PivotLow && p.Price < last.Price {
			*last = p
		}
	}

	return out
}
