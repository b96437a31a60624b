// Package analysis provides the shared types of the Elliott Wave engine: pivots, wave segments,
// candidate patterns, Fibonacci fits and projected targets.
package analysis

import (
	"math"
	"time"
)

// PivotKind marks a pivot as a swing high or a swing low.
type PivotKind string

const (
	PivotHigh PivotKind = "high"
	PivotLow  PivotKind = "low"
)

// Opposite returns the other pivot kind.
func (k PivotKind) Opposite() PivotKind {
	if k == PivotHigh {
		return PivotLow
	}
	return PivotHigh
}

// Pivot represents a local extremum in a price series.
type Pivot struct {
	Index     int       `json:"index"`
	Kind      PivotKind `json:"kind"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// SegmentDirection is the price direction of a wave segment.
type SegmentDirection string

const (
	SegmentUp   SegmentDirection = "up"
	SegmentDown SegmentDirection = "down"
)

// WaveSegment is the leg between two consecutive pivots of a pattern.
type WaveSegment struct {
	Label          string           `json:"label"`
	Start          Pivot            `json:"start"`
	End            Pivot            `json:"end"`
	Length         float64          `json:"length"`
	Direction      SegmentDirection `json:"direction"`
	PercentOfRange float64          `json:"percent_of_range"`
}

// Family is the Elliott Wave pattern family.
type Family string

const (
	FamilyImpulse  Family = "impulse"
	FamilyZigzag   Family = "zigzag"
	FamilyFlat     Family = "flat"
	FamilyTriangle Family = "triangle"
	FamilyComplex  Family = "complex"
)

// IsCorrective reports whether the family is a corrective structure.
func (f Family) IsCorrective() bool {
	return f != FamilyImpulse
}

// Direction represents the expected direction of a pattern.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Opposite returns the reversed direction. Neutral stays neutral.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// Sign returns +1 for bullish, -1 for bearish and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// FibKind says which canonical level set a ratio was snapped to.
type FibKind string

const (
	FibRetracement FibKind = "retracement"
	FibExtension   FibKind = "extension"
)

// FibFit is the Fibonacci evaluation of one segment against its reference segment.
type FibFit struct {
	Segment   string  `json:"segment"`
	Reference string  `json:"reference"`
	Ratio     float64 `json:"ratio"`
	Level     float64 `json:"level"`
	Kind      FibKind `json:"kind"`
	Deviation float64 `json:"deviation"`
	IsValid   bool    `json:"is_valid"`
}

// Targets holds the projected price levels for a pattern.
type Targets struct {
	Entry    float64 `json:"entry"`
	Target1  float64 `json:"target1"`
	Target2  float64 `json:"target2"`
	Target3  float64 `json:"target3"`
	StopLoss float64 `json:"stop_loss"`
}

// Levels returns the three targets ordered from nearest to farthest.
func (t Targets) Levels() []float64 {
	return []float64{t.Target1, t.Target2, t.Target3}
}

// RiskReward returns the reward to risk ratio of the first target.
func (t Targets) RiskReward() float64 {
	risk := math.Abs(t.Entry - t.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(t.Target1-t.Entry) / risk
}

// Pattern is a candidate Elliott Wave pattern. Values are never modified after creation:
// every pipeline stage returns a new Pattern.
type Pattern struct {
	Family      Family             `json:"family"`
	Subtype     string             `json:"subtype"`
	Direction   Direction          `json:"direction"`
	Pivots      []Pivot            `json:"pivots"`
	Segments    []WaveSegment      `json:"segments"`
	Components  []Pattern          `json:"components,omitempty"`
	Fits        []FibFit           `json:"fibonacci,omitempty"`
	Confidence  float64            `json:"confidence"`
	Targets     *Targets           `json:"targets,omitempty"`
	Projections map[string]float64 `json:"projections,omitempty"`
}

// StartIndex returns the bar index of the first pivot.
func (p Pattern) StartIndex() int {
	if len(p.Pivots) == 0 {
		return -1
	}
	return p.Pivots[0].Index
}

// EndIndex returns the bar index of the last pivot.
func (p Pattern) EndIndex() int {
	if len(p.Pivots) == 0 {
		return -1
	}
	return p.Pivots[len(p.Pivots)-1].Index
}

// LastPivot returns the final pivot of the pattern.
func (p Pattern) LastPivot() Pivot {
	return p.Pivots[len(p.Pivots)-1]
}

// Range returns the distance between the highest and lowest pivot prices.
func (p Pattern) Range() float64 {
	if len(p.Pivots) == 0 {
		return 0
	}
	hi, lo := p.Pivots[0].Price, p.Pivots[0].Price
	for _, pv := range p.Pivots[1:] {
		hi = math.Max(hi, pv.Price)
		lo = math.Min(lo, pv.Price)
	}
	return hi - lo
}

// Segment returns the segment with the given label.
func (p Pattern) Segment(label string) (WaveSegment, bool) {
	for _, s := range p.Segments {
		if s.Label == label {
			return s, true
		}
	}
	return WaveSegment{}, false
}

// WithScore returns a copy of the pattern carrying the given fits and confidence.
func (p Pattern) WithScore(fits []FibFit, confidence float64) Pattern {
	out := p
	out.Fits = append([]FibFit(nil), fits...)
	out.Confidence = confidence
	return out
}

// WithTargets returns a copy of the pattern carrying the given targets and projections.
func (p Pattern) WithTargets(t Targets, projections map[string]float64) Pattern {
	out := p
	out.Targets = &t
	out.Projections = make(map[string]float64, len(projections))
	for k, v := range projections {
		out.Projections[k] = v
	}
	return out
}

// DynamicLevels are support and resistance prices derived from pattern structure.
type DynamicLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
	Targets    []float64 `json:"targets"`
}
