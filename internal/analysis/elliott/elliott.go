// Package elliott runs the full Elliott Wave analysis: validation, pivot extraction, pattern
// scanning, confidence scoring, target projection and trend synthesis.
package elliott

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/fibonacci"
	"elliott-analyzer/internal/analysis/patterns"
	"elliott-analyzer/internal/analysis/pivots"
	"elliott-analyzer/internal/analysis/scoring"
	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/analysis/targets"
	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

// familyOrder breaks ranking ties between families.
var familyOrder = map[analysis.Family]int{
	analysis.FamilyImpulse:  0,
	analysis.FamilyZigzag:   1,
	analysis.FamilyFlat:     2,
	analysis.FamilyTriangle: 3,
	analysis.FamilyComplex:  4,
}

// Analyzer runs the analysis pipeline. It is immutable after construction and safe for
// concurrent use.
type Analyzer struct {
	cfg       Config
	logger    zerolog.Logger
	scanner   *patterns.Scanner
	scorer    *scoring.Calculator
	projector *targets.Projector
	synth     *signal.Synthesizer
}

// New creates an analyzer with the given configuration. Stage transitions are logged at
// debug level.
func New(cfg Config, logger zerolog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newAnalyzer(cfg, logger), nil
}

func newAnalyzer(cfg Config, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		logger:    logger.With().Str("component", "elliott").Logger(),
		scanner:   patterns.NewScanner(cfg.Thresholds),
		scorer:    scoring.NewCalculator(fibonacci.NewScorer(cfg.Bands), cfg.Thresholds, cfg.Weights),
		projector: targets.NewProjector(cfg.Targets),
		synth:     signal.NewSynthesizer(cfg.Signal),
	}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze runs one synchronous pass over the series. It never returns nil and never panics:
// every failure is reported as a Result with StatusError.
func (a *Analyzer) Analyze(series models.Series) (res *Result) {
	stage := StageIdle
	enter := func(next Stage) {
		a.logger.Debug().Str("from", string(stage)).Str("to", string(next)).Msg("Analysis stage")
		stage = next
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.NewComputationError(string(stage), fmt.Errorf("panic: %v", r))
			a.logger.Error().Err(err).Str("stage", string(stage)).Msg("Analysis panicked")
			res = a.fail(series, stage, err)
		}
	}()

	enter(StageValidating)
	if err := ValidateSeries(series, a.cfg.MinBars); err != nil {
		return a.fail(series, stage, err)
	}
	price := series.Last().Close

	enter(StageExtracting)
	swings := pivots.Alternate(pivots.FindPivots(series, a.cfg.LeftBars, a.cfg.RightBars))
	if len(swings) < a.cfg.MinPivots {
		trend, raw := a.synth.Trend(series, nil)
		a.logger.Debug().Int("pivots", len(swings)).Msg("Not enough pivots")
		return &Result{
			Status:         StatusInsufficientPivots,
			Message:        fmt.Sprintf("%v: found %d, need %d", errors.ErrInsufficientPivots, len(swings), a.cfg.MinPivots),
			Stage:          StageDone,
			CurrentPrice:   price,
			Trend:          trend,
			RawTrend:       raw,
			Patterns:       []analysis.Pattern{},
			Recommendation: a.synth.Recommend(nil, price),
			DynamicLevels:  a.projector.DynamicLevels(nil, price),
			PivotCount:     len(swings),
			Timestamp:      series.Last().Timestamp,
		}
	}

	enter(StageCandidateScanning)
	candidates := a.scanner.Scan(swings)

	enter(StageScoring)
	scored := make([]analysis.Pattern, len(candidates))
	for i, c := range candidates {
		scored[i] = a.scorer.Evaluate(c)
	}
	Rank(scored)
	if len(scored) > a.cfg.TopN {
		scored = scored[:a.cfg.TopN]
	}

	enter(StageProjecting)
	for i, p := range scored {
		projected, err := a.projector.Apply(p, price)
		if err != nil {
			return a.fail(series, stage, err)
		}
		scored[i] = projected
	}
	levels := a.projector.DynamicLevels(scored, price)

	enter(StageSynthesizing)
	var best *analysis.Pattern
	if len(scored) > 0 {
		best = &scored[0]
	}
	trend, raw := a.synth.Trend(series, best)
	rec := a.synth.Recommend(best, price)

	enter(StageDone)
	a.logger.Debug().
		Int("pivots", len(swings)).
		Int("candidates", len(candidates)).
		Str("trend", string(trend)).
		Str("action", string(rec.Action)).
		Msg("Analysis complete")

	return &Result{
		Status:         StatusSuccess,
		Message:        fmt.Sprintf("found %d candidate patterns", len(candidates)),
		Stage:          StageDone,
		CurrentPrice:   price,
		Trend:          trend,
		RawTrend:       raw,
		Patterns:       scored,
		Recommendation: rec,
		DynamicLevels:  levels,
		PivotCount:     len(swings),
		CandidateCount: len(candidates),
		Timestamp:      series.Last().Timestamp,
	}
}

func (a *Analyzer) fail(series models.Series, stage Stage, err error) *Result {
	a.logger.Debug().Err(err).Str("from", string(stage)).Str("to", string(StageError)).Msg("Analysis failed")

	res := &Result{
		Status:         StatusError,
		Message:        err.Error(),
		Stage:          stage,
		Err:            err,
		Trend:          analysis.Neutral,
		RawTrend:       analysis.Neutral,
		Patterns:       []analysis.Pattern{},
		Recommendation: a.synth.Recommend(nil, 0),
		DynamicLevels:  a.projector.DynamicLevels(nil, 0),
	}
	if len(series) > 0 {
		last := series[len(series)-1]
		res.CurrentPrice = last.Close
		res.Recommendation.Entry = last.Close
		res.Timestamp = last.Timestamp
	}
	return res
}

// Rank sorts patterns best first: higher confidence, then more recent end, then family order
// (impulse, zigzag, flat, triangle, complex), then earlier start.
func Rank(ps []analysis.Pattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.EndIndex() != b.EndIndex() {
			return a.EndIndex() > b.EndIndex()
		}
		if familyOrder[a.Family] != familyOrder[b.Family] {
			return familyOrder[a.Family] < familyOrder[b.Family]
		}
		return a.StartIndex() < b.StartIndex()
	})
}
