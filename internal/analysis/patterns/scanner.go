package patterns

import (
	"fmt"

	"elliott-analyzer/internal/analysis"
)

var (
	impulseLabels    = []string{"1", "2", "3", "4", "5"}
	correctiveLabels = []string{"A", "B", "C"}
	triangleLabels   = []string{"A", "B", "C", "D", "E"}
	componentNames   = []string{"W", "Y", "Z"}
)

// Scanner slides every family window across a pivot sequence and collects each position that
// validates. It favors recall: ranking is left to confidence scoring.
type Scanner struct {
	thresholds Thresholds
}

// NewScanner creates a new scanner with the given thresholds.
func NewScanner(th Thresholds) *Scanner {
	return &Scanner{thresholds: th}
}

// Scan returns all candidate patterns found in the pivots, grouped by family in the order
// impulse, zigzag, flat, triangle, complex and by start offset within a family.
func (s *Scanner) Scan(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	out = append(out, s.Impulses(pivots)...)
	out = append(out, s.Zigzags(pivots)...)
	out = append(out, s.Flats(pivots)...)
	out = append(out, s.Triangles(pivots)...)
	out = append(out, s.Complexes(pivots)...)
	return out
}

// Impulses returns every six-pivot window that forms a valid impulse.
func (s *Scanner) Impulses(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	for i := 0; i+ImpulsePivots <= len(pivots); i++ {
		window := pivots[i : i+ImpulsePivots]
		if dir, ok := ValidateImpulse(window); ok {
			out = append(out, NewPattern(analysis.FamilyImpulse, SubtypeImpulse, dir, window, impulseLabels))
		}
	}
	return out
}

// Zigzags returns every four-pivot window that forms a valid zigzag.
func (s *Scanner) Zigzags(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	for i := 0; i+CorrectivePivots <= len(pivots); i++ {
		window := pivots[i : i+CorrectivePivots]
		if ValidateZigzag(window, s.thresholds) {
			dir := firstLegDirection(window).Opposite()
			out = append(out, NewPattern(analysis.FamilyZigzag, SubtypeZigzag, dir, window, correctiveLabels))
		}
	}
	return out
}

// Flats returns every four-pivot window that forms a valid flat.
func (s *Scanner) Flats(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	for i := 0; i+CorrectivePivots <= len(pivots); i++ {
		window := pivots[i : i+CorrectivePivots]
		if subtype, ok := ValidateFlat(window, s.thresholds); ok {
			dir := firstLegDirection(window).Opposite()
			out = append(out, NewPattern(analysis.FamilyFlat, subtype, dir, window, correctiveLabels))
		}
	}
	return out
}

// Triangles returns every six-pivot window that forms a contracting or expanding triangle.
func (s *Scanner) Triangles(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	for i := 0; i+TrianglePivots <= len(pivots); i++ {
		window := pivots[i : i+TrianglePivots]
		if subtype, ok := ValidateTriangle(window, s.thresholds); ok {
			dir := firstLegDirection(window).Opposite()
			out = append(out, NewPattern(analysis.FamilyTriangle, subtype, dir, window, triangleLabels))
		}
	}
	return out
}

// Complexes returns every double and triple three chain. Each start offset can produce both a
// double three and, when a third component follows, a triple three.
func (s *Scanner) Complexes(pivots []analysis.Pivot) []analysis.Pattern {
	var out []analysis.Pattern
	for start := 0; start < len(pivots); start++ {
		out = append(out, s.complexesAt(pivots, start)...)
	}
	return out
}

func (s *Scanner) complexesAt(pivots []analysis.Pivot, start int) []analysis.Pattern {
	var (
		out        []analysis.Pattern
		components []analysis.Pattern
		links      []analysis.WaveSegment
	)

	pos := start
	for len(components) < s.thresholds.MaxComponents && pos < len(pivots) {
		comp, ok := s.component(pivots, pos)
		if !ok {
			break
		}

		var link analysis.WaveSegment
		if len(components) > 0 {
			prev := components[len(components)-1]
			link = newSegment(fmt.Sprintf("X%d", len(links)+1), prev.LastPivot(), comp.Pivots[0])
			if !ValidateComplex(append(components[:len(components):len(components)], comp),
				append(links[:len(links):len(links)], link), s.thresholds) {
				break
			}
			links = append(links, link)
		}
		components = append(components, comp)

		if len(components) >= 2 {
			out = append(out, newComplex(components, links))
		}

		end := pos + len(comp.Pivots) - 1
		pos = end + 1
	}

	return out
}

// component classifies the window starting at pos as a zigzag, flat or impulse, in that order.
func (s *Scanner) component(pivots []analysis.Pivot, pos int) (analysis.Pattern, bool) {
	if pos+CorrectivePivots <= len(pivots) {
		window := pivots[pos : pos+CorrectivePivots]
		if ValidateZigzag(window, s.thresholds) {
			return NewPattern(analysis.FamilyZigzag, SubtypeZigzag, firstLegDirection(window).Opposite(), window, correctiveLabels), true
		}
		if subtype, ok := ValidateFlat(window, s.thresholds); ok {
			return NewPattern(analysis.FamilyFlat, subtype, firstLegDirection(window).Opposite(), window, correctiveLabels), true
		}
	}
	if pos+ImpulsePivots <= len(pivots) {
		window := pivots[pos : pos+ImpulsePivots]
		if dir, ok := ValidateImpulse(window); ok {
			return NewPattern(analysis.FamilyImpulse, SubtypeImpulse, dir, window, impulseLabels), true
		}
	}
	return analysis.Pattern{}, false
}

func newComplex(components []analysis.Pattern, links []analysis.WaveSegment) analysis.Pattern {
	var (
		pivots   []analysis.Pivot
		segments []analysis.WaveSegment
	)
	for i, c := range components {
		pivots = append(pivots, c.Pivots...)
		if i > 0 {
			segments = append(segments, links[i-1])
		}
		name := fmt.Sprintf("C%d", i+1)
		if i < len(componentNames) {
			name = componentNames[i]
		}
		for _, seg := range c.Segments {
			seg.Label = name + "." + seg.Label
			segments = append(segments, seg)
		}
	}
	fillPercentOfRange(segments)

	subtype := SubtypeDoubleThree
	if len(components) >= 3 {
		subtype = SubtypeTripleThree
	}

	return analysis.Pattern{
		Family:     analysis.FamilyComplex,
		Subtype:    subtype,
		Direction:  firstLegDirection(pivots).Opposite(),
		Pivots:     pivots,
		Segments:   segments,
		Components: append([]analysis.Pattern(nil), components...),
	}
}

// NewPattern builds an unscored candidate pattern with one segment per consecutive pivot pair.
func NewPattern(family analysis.Family, subtype string, dir analysis.Direction, window []analysis.Pivot, labels []string) analysis.Pattern {
	pivots := append([]analysis.Pivot(nil), window...)
	segments := make([]analysis.WaveSegment, 0, len(pivots)-1)
	for i := 1; i < len(pivots); i++ {
		label := fmt.Sprintf("%d", i)
		if i-1 < len(labels) {
			label = labels[i-1]
		}
		segments = append(segments, newSegment(label, pivots[i-1], pivots[i]))
	}
	fillPercentOfRange(segments)

	return analysis.Pattern{
		Family:    family,
		Subtype:   subtype,
		Direction: dir,
		Pivots:    pivots,
		Segments:  segments,
	}
}

func newSegment(label string, start, end analysis.Pivot) analysis.WaveSegment {
	length := end.Price - start.Price
	dir := analysis.SegmentUp
	if length < 0 {
		length = -length
		dir = analysis.SegmentDown
	}
	return analysis.WaveSegment{
		Label:     label,
		Start:     start,
		End:       end,
		Length:    length,
		Direction: dir,
	}
}

func fillPercentOfRange(segments []analysis.WaveSegment) {
	var total float64
	for _, s := range segments {
		total += s.Length
	}
	if total == 0 {
		return
	}
	for i := range segments {
		segments[i].PercentOfRange = segments[i].Length / total * 100
	}
}
