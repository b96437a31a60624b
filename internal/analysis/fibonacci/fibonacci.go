// Package fibonacci measures how closely pattern segments follow Fibonacci proportions.
package fibonacci

import (
	"fmt"
	"math"

	"elliott-analyzer/internal/analysis"
)

// epsilon absorbs floating point noise at band edges.
const epsilon = 1e-9

// Band is a canonical Fibonacci level with its accepted tolerance range.
type Band struct {
	Level float64 `mapstructure:"level" json:"level"`
	Min   float64 `mapstructure:"min" json:"min"`
	Max   float64 `mapstructure:"max" json:"max"`
}

// Contains reports whether ratio falls inside the band.
func (b Band) Contains(ratio float64) bool {
	return ratio >= b.Min-epsilon && ratio <= b.Max+epsilon
}

// Bands holds the retracement and extension level sets.
type Bands struct {
	Retracement []Band `mapstructure:"retracement"`
	Extension   []Band `mapstructure:"extension"`
}

// DefaultBands returns the standard retracement and extension bands.
func DefaultBands() Bands {
	return Bands{
		Retracement: []Band{
			{Level: 0.236, Min: 0.200, Max: 0.270},
			{Level: 0.382, Min: 0.350, Max: 0.420},
			{Level: 0.500, Min: 0.450, Max: 0.550},
			{Level: 0.618, Min: 0.580, Max: 0.650},
			{Level: 0.764, Min: 0.720, Max: 0.800},
		},
		Extension: []Band{
			{Level: 1.000, Min: 0.950, Max: 1.050},
			{Level: 1.272, Min: 1.220, Max: 1.320},
			{Level: 1.618, Min: 1.550, Max: 1.680},
			{Level: 2.618, Min: 2.500, Max: 2.740},
		},
	}
}

// Validate checks that every band is non-empty and contains its level.
func (b Bands) Validate() error {
	sets := []struct {
		name  string
		bands []Band
	}{{"retracement", b.Retracement}, {"extension", b.Extension}}
	for _, set := range sets {
		name := set.name
		if len(set.bands) == 0 {
			return fmt.Errorf("%s bands must not be empty", name)
		}
		for _, band := range set.bands {
			if band.Min > band.Max || band.Level < band.Min || band.Level > band.Max {
				return fmt.Errorf("%s band %.3f has invalid range [%.3f, %.3f]", name, band.Level, band.Min, band.Max)
			}
		}
	}
	return nil
}

func (b Bands) set(kind analysis.FibKind) []Band {
	if kind == analysis.FibExtension {
		return b.Extension
	}
	return b.Retracement
}

// Scorer snaps segment ratios to the nearest Fibonacci level.
type Scorer struct {
	bands Bands
}

// NewScorer creates a new scorer with the given bands.
func NewScorer(bands Bands) *Scorer {
	return &Scorer{bands: bands}
}

// Fit returns the nearest level of the given kind, the absolute deviation from it and whether
// the ratio lies inside that level's band. Ties go to the lower level.
func (s *Scorer) Fit(ratio float64, kind analysis.FibKind) (level, deviation float64, valid bool) {
	set := s.bands.set(kind)
	if len(set) == 0 {
		return 0, math.Inf(1), false
	}
	best := set[0]
	deviation = math.Abs(ratio - best.Level)
	for _, b := range set[1:] {
		if d := math.Abs(ratio - b.Level); d < deviation {
			best, deviation = b, d
		}
	}
	return best.Level, deviation, best.Contains(ratio)
}

// measure is one segment compared against its reference.
type measure struct {
	segment, reference string
	length, refLength  float64
	kind               analysis.FibKind
}

// Score evaluates every family-specific segment relation of the pattern. Relations with a
// zero-length reference are skipped.
func (s *Scorer) Score(p analysis.Pattern) []analysis.FibFit {
	var fits []analysis.FibFit
	for _, m := range measures(p) {
		if m.refLength <= 0 {
			continue
		}
		ratio := m.length / m.refLength
		level, dev, valid := s.Fit(ratio, m.kind)
		fits = append(fits, analysis.FibFit{
			Segment:   m.segment,
			Reference: m.reference,
			Ratio:     ratio,
			Level:     level,
			Kind:      m.kind,
			Deviation: dev,
			IsValid:   valid,
		})
	}
	return fits
}

// CountValid returns the number of fits inside their band.
func CountValid(fits []analysis.FibFit) int {
	n := 0
	for _, f := range fits {
		if f.IsValid {
			n++
		}
	}
	return n
}

// relation names a segment and the segment it is measured against.
type relation struct {
	segment, reference string
	kind               analysis.FibKind
}

var (
	impulseRelations = []relation{
		{"2", "1", analysis.FibRetracement},
		{"3", "1", analysis.FibExtension},
		{"4", "3", analysis.FibRetracement},
		{"5", "1", analysis.FibExtension},
	}
	zigzagRelations = []relation{
		{"B", "A", analysis.FibRetracement},
		{"C", "A", analysis.FibExtension},
	}
	flatRelations = []relation{
		{"B", "A", analysis.FibExtension},
		{"C", "A", analysis.FibExtension},
	}
)

func measures(p analysis.Pattern) []measure {
	switch p.Family {
	case analysis.FamilyImpulse:
		return relate(p, impulseRelations)
	case analysis.FamilyZigzag:
		return relate(p, zigzagRelations)
	case analysis.FamilyFlat:
		return relate(p, flatRelations)
	case analysis.FamilyTriangle:
		var rels []relation
		for i := 1; i < len(p.Segments); i++ {
			rels = append(rels, relation{p.Segments[i].Label, p.Segments[i-1].Label, analysis.FibRetracement})
		}
		return relate(p, rels)
	case analysis.FamilyComplex:
		return complexMeasures(p)
	default:
		return nil
	}
}

func relate(p analysis.Pattern, rels []relation) []measure {
	out := make([]measure, 0, len(rels))
	for _, r := range rels {
		seg, ok := p.Segment(r.segment)
		if !ok {
			continue
		}
		ref, ok := p.Segment(r.reference)
		if !ok {
			continue
		}
		out = append(out, measure{
			segment:   r.segment,
			reference: r.reference,
			length:    seg.Length,
			refLength: ref.Length,
			kind:      r.kind,
		})
	}
	return out
}

// complexMeasures compares each linking wave and each later component with component W.
func complexMeasures(p analysis.Pattern) []measure {
	if len(p.Components) == 0 {
		return nil
	}
	w := p.Components[0].Range()

	var out []measure
	for _, s := range p.Segments {
		if len(s.Label) > 1 && s.Label[0] == 'X' {
			out = append(out, measure{
				segment:   s.Label,
				reference: "W",
				length:    s.Length,
				refLength: w,
				kind:      analysis.FibRetracement,
			})
		}
	}
	names := []string{"Y", "Z"}
	for i, c := range p.Components[1:] {
		name := fmt.Sprintf("C%d", i+2)
		if i < len(names) {
			name = names[i]
		}
		out = append(out, measure{
			segment:   name,
			reference: "W",
			length:    c.Range(),
			refLength: w,
			kind:      analysis.FibExtension,
		})
	}
	return out
}
