// Package patterns validates pivot windows against Elliott Wave structural rules and scans
// pivot sequences for every matching window.
package patterns

import (
	"elliott-analyzer/internal/analysis"
)

// Window sizes per family.
const (
	ImpulsePivots    = 6
	CorrectivePivots = 4
	TrianglePivots   = 6
)

// Subtypes reported on candidate patterns.
const (
	SubtypeImpulse     = "impulse"
	SubtypeZigzag      = "zigzag"
	SubtypeRegular     = "regular"
	SubtypeExpanded    = "expanded"
	SubtypeContracting = "contracting"
	SubtypeExpanding   = "expanding"
	SubtypeDoubleThree = "double_three"
	SubtypeTripleThree = "triple_three"
)

// legs returns the absolute leg lengths of a pivot window. It fails unless the pivots alternate
// between highs and lows and every leg moves strictly in the direction implied by its start.
func legs(pivots []analysis.Pivot) ([]float64, bool) {
	if len(pivots) < 2 {
		return nil, false
	}
	out := make([]float64, len(pivots)-1)
	for i := 1; i < len(pivots); i++ {
		prev, cur := pivots[i-1], pivots[i]
		if cur.Kind == prev.Kind || cur.Index <= prev.Index {
			return nil, false
		}
		delta := cur.Price - prev.Price
		if prev.Kind == analysis.PivotLow && delta <= 0 {
			return nil, false
		}
		if prev.Kind == analysis.PivotHigh && delta >= 0 {
			return nil, false
		}
		if delta < 0 {
			delta = -delta
		}
		out[i-1] = delta
	}
	return out, true
}

// firstLegDirection is bullish when the window opens from a low.
func firstLegDirection(pivots []analysis.Pivot) analysis.Direction {
	if pivots[0].Kind == analysis.PivotLow {
		return analysis.Bullish
	}
	return analysis.Bearish
}

// ValidateImpulse checks a six-pivot window against the three impulse rules:
// wave 2 never retraces past the start of wave 1, wave 3 is not the shortest of waves 1, 3 and 5,
// and wave 4 never enters wave 1's price territory. The returned direction is the direction of
// wave 1.
func ValidateImpulse(pivots []analysis.Pivot) (analysis.Direction, bool) {
	if len(pivots) != ImpulsePivots {
		return analysis.Neutral, false
	}
	w, ok := legs(pivots)
	if !ok {
		return analysis.Neutral, false
	}

	dir := firstLegDirection(pivots)
	up := dir == analysis.Bullish

	if up && pivots[2].Price <= pivots[0].Price {
		return analysis.Neutral, false
	}
	if !up && pivots[2].Price >= pivots[0].Price {
		return analysis.Neutral, false
	}

	if w[2] < w[0] && w[2] < w[4] {
		return analysis.Neutral, false
	}

	if up && pivots[4].Price <= pivots[1].Price {
		return analysis.Neutral, false
	}
	if !up && pivots[4].Price >= pivots[1].Price {
		return analysis.Neutral, false
	}

	return dir, true
}

// ValidateCorrective checks the generic ABC rule: wave B may not retrace more than
// MaxBRetrace of wave A.
func ValidateCorrective(pivots []analysis.Pivot, th Thresholds) bool {
	if len(pivots) != CorrectivePivots {
		return false
	}
	w, ok := legs(pivots)
	if !ok {
		return false
	}
	return w[1] <= w[0]*th.MaxBRetrace
}

// ValidateZigzag checks a sharp ABC: B retraces ZigzagMinB..ZigzagMaxB of A and C extends
// ZigzagMinC..ZigzagMaxC of A.
func ValidateZigzag(pivots []analysis.Pivot, th Thresholds) bool {
	if !ValidateCorrective(pivots, th) {
		return false
	}
	w, _ := legs(pivots)
	b, c := w[1]/w[0], w[2]/w[0]
	return b >= th.ZigzagMinB && b <= th.ZigzagMaxB &&
		c >= th.ZigzagMinC && c <= th.ZigzagMaxC
}

// ValidateFlat checks a sideways ABC: B retraces at least FlatMinB of A (up to FlatMaxB) and C
// is FlatMinC..FlatMaxC of A. A B wave beyond the start of A makes the flat expanded.
func ValidateFlat(pivots []analysis.Pivot, th Thresholds) (string, bool) {
	if !ValidateCorrective(pivots, th) {
		return "", false
	}
	w, _ := legs(pivots)
	b, c := w[1]/w[0], w[2]/w[0]
	if b < th.FlatMinB || b > th.FlatMaxB {
		return "", false
	}
	if c < th.FlatMinC || c > th.FlatMaxC {
		return "", false
	}
	if b > th.FlatRegularMaxB {
		return SubtypeExpanded, true
	}
	return SubtypeRegular, true
}

// ValidateTriangle checks a five-leg triangle. Every leg must be smaller than the previous one
// (contracting) or every leg larger (expanding); anything else is rejected.
func ValidateTriangle(pivots []analysis.Pivot, th Thresholds) (string, bool) {
	if len(pivots) != TrianglePivots {
		return "", false
	}
	w, ok := legs(pivots)
	if !ok {
		return "", false
	}

	contracting, expanding := true, true
	for i := 1; i < len(w); i++ {
		if w[i] >= w[i-1]*th.TriangleDecay {
			contracting = false
		}
		if w[i] <= w[i-1]*th.TriangleGrowth {
			expanding = false
		}
	}

	switch {
	case contracting:
		return SubtypeContracting, true
	case expanding:
		return SubtypeExpanding, true
	default:
		return "", false
	}
}

// ValidateComplex checks a double or triple three: at least two classified components joined
// by linking waves, each link smaller than LinkingRatio times the average segment amplitude of
// the components. Links must connect the last pivot of one component to the first of the next.
func ValidateComplex(components []analysis.Pattern, links []analysis.WaveSegment, th Thresholds) bool {
	if len(components) < 2 || len(components) > th.MaxComponents || len(links) != len(components)-1 {
		return false
	}

	var total float64
	var count int
	for _, c := range components {
		if len(c.Pivots) == 0 {
			return false
		}
		for _, s := range c.Segments {
			total += s.Length
			count++
		}
	}
	if count == 0 || total == 0 {
		return false
	}
	limit := th.LinkingRatio * total / float64(count)

	for i, link := range links {
		prev, next := components[i], components[i+1]
		if link.Start.Index != prev.LastPivot().Index || link.End.Index != next.Pivots[0].Index {
			return false
		}
		if link.Length <= 0 || link.Length >= limit {
			return false
		}
	}
	return true
}
