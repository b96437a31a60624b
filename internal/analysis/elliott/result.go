package elliott

import (
	"time"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/signal"
)

// Stage is a state of the analysis pipeline.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageValidating        Stage = "validating"
	StageExtracting        Stage = "extracting"
	StageCandidateScanning Stage = "candidate_scanning"
	StageScoring           Stage = "scoring"
	StageProjecting        Stage = "projecting"
	StageSynthesizing      Stage = "synthesizing"
	StageDone              Stage = "done"
	StageError             Stage = "error"
)

// Status is the outcome of an analysis.
type Status string

const (
	StatusSuccess            Status = "success"
	StatusInsufficientPivots Status = "insufficient_pivots"
	StatusError              Status = "error"
)

// Result is the complete output of one analysis pass.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	// Stage is the last stage reached; for errors, the stage that failed.
	Stage Stage `json:"stage"`
	Err   error `json:"-"`

	CurrentPrice   float64                `json:"current_price"`
	Trend          analysis.Direction     `json:"trend"`
	RawTrend       analysis.Direction     `json:"raw_trend"`
	Patterns       []analysis.Pattern     `json:"patterns"`
	Recommendation signal.Recommendation  `json:"recommendation"`
	DynamicLevels  analysis.DynamicLevels `json:"dynamic_levels"`
	PivotCount     int                    `json:"pivot_count"`
	CandidateCount int                    `json:"candidate_count"`
	Timestamp      time.Time              `json:"timestamp"`
}

// OK reports whether the analysis produced patterns.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// Best returns the highest ranked pattern, or nil.
func (r *Result) Best() *analysis.Pattern {
	if len(r.Patterns) == 0 {
		return nil
	}
	return &r.Patterns[0]
}
