// Package scan runs the Elliott Wave analysis over many symbols or intervals concurrently.
package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/logging"
	"elliott-analyzer/internal/models"
)

// DefaultConcurrency is used when the scanner is created with a non-positive limit.
const DefaultConcurrency = 4

// CandleProvider supplies the candle series for a symbol and interval.
type CandleProvider func(ctx context.Context, symbol, interval string) (models.Series, error)

// Criteria filters scan results. Zero values match everything.
type Criteria struct {
	MinConfidence float64
	Action        signal.Action
	Family        analysis.Family
}

// Matches reports whether an analysis passes the criteria. Only successful analyses with a
// pattern can pass.
func (c Criteria) Matches(res *elliott.Result) bool {
	if res == nil || !res.OK() {
		return false
	}
	best := res.Best()
	if best == nil {
		return false
	}
	if best.Confidence < c.MinConfidence {
		return false
	}
	if c.Action != "" && res.Recommendation.Action != c.Action {
		return false
	}
	if c.Family != "" && best.Family != c.Family {
		return false
	}
	return true
}

// Result is the outcome of analyzing one symbol on one interval.
type Result struct {
	Symbol     string
	Interval   string
	Analysis   *elliott.Result
	Confidence float64
	Action     signal.Action
	Passed     bool
	Err        error
}

// Report collects a scan over many symbols.
type Report struct {
	Interval string
	// Results that passed the criteria, best first.
	Results []Result
	// Symbols whose data could not be loaded or analyzed.
	Failed   []Result
	Total    int
	Duration time.Duration
}

// Summary aggregates the passed results of a report.
type Summary struct {
	Matches       int
	Bullish       int
	Bearish       int
	AvgConfidence float64
}

// Summary counts bullish and bearish matches and averages their confidence.
func (r *Report) Summary() Summary {
	s := Summary{Matches: len(r.Results)}
	var total float64
	for _, res := range r.Results {
		switch res.Action {
		case signal.ActionBuy:
			s.Bullish++
		case signal.ActionSell:
			s.Bearish++
		}
		total += res.Confidence
	}
	if s.Matches > 0 {
		s.AvgConfidence = total / float64(s.Matches)
	}
	return s
}

// Scanner analyzes symbols with bounded concurrency.
type Scanner struct {
	analyzer    *elliott.Analyzer
	concurrency int
	logger      zerolog.Logger
}

// NewScanner creates a scanner around an analyzer.
func NewScanner(analyzer *elliott.Analyzer, concurrency int, logger zerolog.Logger) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		analyzer:    analyzer,
		concurrency: concurrency,
		logger:      logging.WithOperation(logger, "scan"),
	}
}

// Scan analyzes every symbol on interval. Per-symbol failures are collected in the report;
// only cancellation of ctx aborts the scan.
func (s *Scanner) Scan(ctx context.Context, symbols []string, interval string, crit Criteria, provider CandleProvider) (*Report, error) {
	start := time.Now()
	report := &Report{Interval: interval, Total: len(symbols)}
	if len(symbols) == 0 {
		return report, nil
	}

	results := make([]Result, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.analyzeOne(gctx, symbol, interval, crit, provider)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, res := range results {
		switch {
		case res.Err != nil:
			report.Failed = append(report.Failed, res)
		case res.Passed:
			report.Results = append(report.Results, res)
		}
	}
	sortByConfidence(report.Results)
	report.Duration = time.Since(start)

	s.logger.Info().
		Str("interval", interval).
		Int("symbols", report.Total).
		Int("matches", len(report.Results)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("Scan complete")
	return report, nil
}

func (s *Scanner) analyzeOne(ctx context.Context, symbol, interval string, crit Criteria, provider CandleProvider) Result {
	res := Result{Symbol: symbol, Interval: interval, Action: signal.ActionWait}

	logger := logging.WithInterval(logging.WithSymbol(s.logger, symbol), interval)

	series, err := provider(ctx, symbol, interval)
	if err != nil {
		res.Err = err
		logger.Warn().Err(err).Msg("Failed to load candles")
		return res
	}

	out := s.analyzer.Analyze(series)
	res.Analysis = out
	if out.Status == elliott.StatusError {
		res.Err = out.Err
		if res.Err == nil {
			res.Err = fmt.Errorf("analysis failed: %s", out.Message)
		}
		return res
	}

	res.Action = out.Recommendation.Action
	if best := out.Best(); best != nil {
		res.Confidence = best.Confidence
	}
	res.Passed = crit.Matches(out)
	return res
}

// sortByConfidence orders results by confidence, highest first, then by symbol.
func sortByConfidence(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Symbol < results[j].Symbol
	})
}

// Comparison is one symbol analyzed across several intervals.
type Comparison struct {
	Symbol    string
	Results   []Result
	Bullish   int
	Bearish   int
	Consensus analysis.Direction
}

// CompareTimeframes analyzes symbol on each interval and derives a consensus direction from
// the recommended actions. Ties and all-wait outcomes are neutral.
func (s *Scanner) CompareTimeframes(ctx context.Context, symbol string, intervals []string, provider CandleProvider) (*Comparison, error) {
	cmp := &Comparison{Symbol: symbol, Results: make([]Result, len(intervals))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, interval := range intervals {
		i, interval := i, interval
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cmp.Results[i] = s.analyzeOne(gctx, symbol, interval, Criteria{}, provider)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, res := range cmp.Results {
		if res.Err != nil {
			continue
		}
		switch res.Action {
		case signal.ActionBuy:
			cmp.Bullish++
		case signal.ActionSell:
			cmp.Bearish++
		}
	}
	cmp.Consensus = consensus(cmp.Bullish, cmp.Bearish)
	return cmp, nil
}

func consensus(bullish, bearish int) analysis.Direction {
	switch {
	case bullish > bearish:
		return analysis.Bullish
	case bearish > bullish:
		return analysis.Bearish
	default:
		return analysis.Neutral
	}
}
