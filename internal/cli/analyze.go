package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/logging"
	"elliott-analyzer/internal/marketdata"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/internal/scan"
	"elliott-analyzer/internal/store"
	"elliott-analyzer/pkg/utils"
)

const commandTimeout = 2 * time.Minute

// addAnalysisCommands adds the analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newCompareCmd(app))
}

// analysisOutput is the JSON shape of the analyze command.
type analysisOutput struct {
	ID       string          `json:"id,omitempty"`
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Source   string          `json:"source"`
	Result   *elliott.Result `json:"result"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [symbol]",
		Short: "Detect Elliott Wave patterns for a symbol",
		Long: `Fetch candles for a symbol and run the Elliott Wave analysis:
- Pivot extraction
- Impulse, zigzag, flat, triangle and complex pattern detection
- Fibonacci confidence scoring
- Targets, stop loss and dynamic support/resistance
- Trend and trade recommendation

With --file the candles are read from a CSV file (timestamp,open,high,low,close,volume)
instead of the exchange.`,
		Example: `  elliott analyze BTCUSDT
  elliott analyze ETHUSDT --interval 1d --limit 300
  elliott analyze --file btc_4h.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			interval, _ := cmd.Flags().GetString("interval")
			limit, _ := cmd.Flags().GetInt("limit")
			file, _ := cmd.Flags().GetString("file")
			save, _ := cmd.Flags().GetBool("save")
			if interval == "" {
				interval = app.Config.Scan.Interval
			}
			if limit == 0 {
				limit = app.Config.Scan.Limit
			}

			var (
				symbol string
				series models.Series
				source string
				err    error
			)
			if file != "" {
				symbol = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
				if len(args) == 1 {
					symbol = args[0]
				}
				symbol = strings.ToUpper(symbol)
				series, err = marketdata.LoadCSVFile(file)
				if err != nil {
					output.Error("Failed to load %s: %v", file, err)
					return err
				}
				source = "file"
			} else {
				if len(args) == 0 {
					return fmt.Errorf("a symbol is required unless --file is given")
				}
				if symbol, err = marketdata.NormalizeSymbol(args[0]); err != nil {
					return err
				}
				if err := marketdata.ValidateInterval(interval); err != nil {
					return err
				}
				if err := marketdata.ValidateLimit(limit); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Info("Analyzing %s on %s (%d candles)...", symbol, interval, limit)
				}
				var cached bool
				series, cached, err = app.candles(ctx, symbol, interval, limit)
				if err != nil {
					output.Error("Failed to get candles: %v", err)
					return err
				}
				source = "binance"
				if cached {
					source = "cache"
				}
			}

			logger := logging.FromContext(ctx)
			res := app.Analyzer.Analyze(series)
			logging.LogAnalysis(logger, symbol, interval, string(res.Status), string(res.Recommendation.Action), res.Recommendation.Confidence, len(res.Patterns))

			out := analysisOutput{Symbol: symbol, Interval: interval, Source: source, Result: res}
			if save && res.Status != elliott.StatusError && app.Store != nil {
				if id, err := saveAnalysis(ctx, app, symbol, interval, res); err != nil {
					logger.Warn().Err(err).Msg("Failed to save analysis")
				} else {
					out.ID = id
				}
			}

			if output.IsJSON() {
				if err := output.JSON(out); err != nil {
					return err
				}
			} else {
				renderAnalysis(output, symbol, interval, res, app.Config.UI.DateFormat)
				if out.ID != "" {
					output.Dim("Saved to history as %s", ShortID(out.ID))
				}
			}

			if res.Status == elliott.StatusError {
				return res.Err
			}
			return nil
		},
	}

	cmd.Flags().StringP("interval", "i", "", "candle interval (default from config)")
	cmd.Flags().IntP("limit", "l", 0, "number of candles, 50-1000 (default from config)")
	cmd.Flags().StringP("file", "f", "", "read candles from a CSV file")
	cmd.Flags().Bool("save", true, "save the analysis to history")

	return cmd
}

func saveAnalysis(ctx context.Context, app *App, symbol, interval string, res *elliott.Result) (string, error) {
	record, err := store.NewAnalysisRecord(symbol, interval, res)
	if err != nil {
		return "", err
	}
	if err := app.Store.SaveAnalysis(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// renderAnalysis prints a full analysis report.
func renderAnalysis(output *Output, symbol, interval string, res *elliott.Result, dateFormat string) {
	if res.Status == elliott.StatusError {
		output.Error("Analysis failed during %s: %s", res.Stage, res.Message)
		return
	}

	rec := res.Recommendation
	lines := []string{
		fmt.Sprintf("Price:       %s", utils.FormatPrice(res.CurrentPrice)),
		fmt.Sprintf("Trend:       %s %s", output.Direction(res.Trend), output.DimText("(raw "+string(res.RawTrend)+")")),
		fmt.Sprintf("Signal:      %s", output.Action(rec.Action)),
	}
	if rec.Action != signal.ActionWait {
		lines = append(lines,
			fmt.Sprintf("Confidence:  %s", output.Confidence(rec.Confidence)),
			fmt.Sprintf("Risk:        %s  %s", output.Risk(rec.Risk), output.DimText(rec.PositionSize)),
			fmt.Sprintf("Entry:       %s", utils.FormatPrice(rec.Entry)),
		)
		for i, t := range rec.Targets {
			lines = append(lines, fmt.Sprintf("Target %d:    %s", i+1, FormatLevel(rec.Entry, t)))
		}
		lines = append(lines,
			fmt.Sprintf("Stop loss:   %s", FormatLevel(rec.Entry, rec.StopLoss)),
			fmt.Sprintf("Risk/Reward: %s", utils.FormatRatio(rec.RiskReward)),
		)
		if rec.NextWave != "" {
			lines = append(lines, fmt.Sprintf("Next wave:   %s", rec.NextWave))
		}
	}
	lines = append(lines, fmt.Sprintf("Reason:      %s", rec.Reason))
	output.Box(fmt.Sprintf("%s · %s", symbol, interval), lines)

	if res.Status == elliott.StatusInsufficientPivots {
		output.Println()
		output.Warning("%s", res.Message)
	}

	if len(res.Patterns) > 0 {
		output.Println()
		output.Bold("Patterns")
		table := NewTable(output, "#", "PATTERN", "DIRECTION", "CONFIDENCE", "WAVES")
		for i, p := range res.Patterns {
			table.AddRow(
				fmt.Sprintf("%d", i+1),
				FormatPattern(p),
				output.Direction(p.Direction),
				output.Confidence(p.Confidence),
				FormatWaves(p),
			)
		}
		table.Render()
	}

	levels := res.DynamicLevels
	output.Println()
	output.Bold("Key levels")
	output.Printf("  Resistance: %s\n", FormatPrices(levels.Resistance))
	output.Printf("  Support:    %s\n", FormatPrices(levels.Support))

	output.Println()
	output.Dim("%d pivots, %d candidates, last candle %s", res.PivotCount, res.CandidateCount, res.Timestamp.Local().Format(dateFormat))
}

// scanResultOutput is the JSON shape of one scan or compare row.
type scanResultOutput struct {
	Symbol     string             `json:"symbol"`
	Interval   string             `json:"interval"`
	Action     signal.Action      `json:"action"`
	Confidence float64            `json:"confidence"`
	Pattern    string             `json:"pattern,omitempty"`
	Trend      analysis.Direction `json:"trend,omitempty"`
	Price      float64            `json:"price,omitempty"`
	Targets    []float64          `json:"targets,omitempty"`
	StopLoss   float64            `json:"stop_loss,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func toScanOutput(r scan.Result) scanResultOutput {
	out := scanResultOutput{
		Symbol:     r.Symbol,
		Interval:   r.Interval,
		Action:     r.Action,
		Confidence: r.Confidence,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	if r.Analysis != nil && r.Analysis.Status != elliott.StatusError {
		out.Trend = r.Analysis.Trend
		out.Price = r.Analysis.CurrentPrice
		out.Targets = r.Analysis.Recommendation.Targets
		out.StopLoss = r.Analysis.Recommendation.StopLoss
		if best := r.Analysis.Best(); best != nil {
			out.Pattern = FormatPattern(*best)
		}
	}
	return out
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Scan many symbols for high confidence patterns",
		Long: `Analyze several symbols concurrently and list those whose best pattern reaches the
minimum confidence, highest confidence first.

Without arguments the top USDT pairs by 24h quote volume are scanned (leveraged tokens
excluded). Use --favorites to scan the saved favorite symbols.`,
		Example: `  elliott scan
  elliott scan --favorites --interval 1h
  elliott scan BTCUSDT ETHUSDT SOLUSDT --min-confidence 60 --action BUY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*commandTimeout)
			defer cancel()

			interval, _ := cmd.Flags().GetString("interval")
			limit, _ := cmd.Flags().GetInt("limit")
			top, _ := cmd.Flags().GetInt("top")
			minConf, _ := cmd.Flags().GetFloat64("min-confidence")
			favorites, _ := cmd.Flags().GetBool("favorites")
			action, _ := cmd.Flags().GetString("action")
			family, _ := cmd.Flags().GetString("family")

			if interval == "" {
				interval = app.Config.Scan.Interval
			}
			if limit == 0 {
				limit = app.Config.Scan.Limit
			}
			if top == 0 {
				top = app.Config.Scan.TopSymbols
			}
			if !cmd.Flags().Changed("min-confidence") {
				minConf = app.Config.Scan.MinConfidence
			}
			if err := marketdata.ValidateInterval(interval); err != nil {
				return err
			}
			if err := marketdata.ValidateLimit(limit); err != nil {
				return err
			}

			crit := scan.Criteria{
				MinConfidence: minConf,
				Action:        signal.Action(strings.ToUpper(action)),
				Family:        analysis.Family(strings.ToLower(family)),
			}
			switch crit.Action {
			case "", signal.ActionBuy, signal.ActionSell:
			default:
				return fmt.Errorf("invalid --action %q (use BUY or SELL)", action)
			}

			symbols, err := scanSymbols(ctx, app, args, favorites, top)
			if err != nil {
				output.Error("Failed to get symbols: %v", err)
				return err
			}
			if len(symbols) == 0 {
				output.Warning("No symbols to scan")
				return nil
			}

			if !output.IsJSON() {
				output.Info("Scanning %d symbols on %s...", len(symbols), interval)
			}

			scanner := scan.NewScanner(app.Analyzer, app.Config.Scan.Concurrency, logging.FromContext(cmd.Context()))
			report, err := scanner.Scan(ctx, symbols, interval, crit, func(ctx context.Context, symbol, interval string) (models.Series, error) {
				series, _, err := app.candles(ctx, symbol, interval, limit)
				return series, err
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(scanReportOutput(report, crit))
			}
			renderScan(output, report, crit)
			return nil
		},
	}

	cmd.Flags().StringP("interval", "i", "", "candle interval (default from config)")
	cmd.Flags().IntP("limit", "l", 0, "number of candles per symbol (default from config)")
	cmd.Flags().IntP("top", "n", 0, "number of top volume symbols to scan (default from config)")
	cmd.Flags().Float64P("min-confidence", "c", 0, "minimum pattern confidence (default from config)")
	cmd.Flags().Bool("favorites", false, "scan favorite symbols")
	cmd.Flags().String("action", "", "only show BUY or SELL signals")
	cmd.Flags().String("family", "", "only show one pattern family (impulse, zigzag, flat, triangle, complex)")

	return cmd
}

// scanSymbols resolves the symbols to scan: explicit arguments, favorites or the top volume
// pairs, in that order of precedence.
func scanSymbols(ctx context.Context, app *App, args []string, favorites bool, top int) ([]string, error) {
	if len(args) > 0 {
		symbols := make([]string, 0, len(args))
		for _, a := range args {
			s, err := marketdata.NormalizeSymbol(a)
			if err != nil {
				return nil, err
			}
			symbols = append(symbols, s)
		}
		return symbols, nil
	}

	if favorites {
		if err := app.requireStore(); err != nil {
			return nil, err
		}
		return app.Store.GetFavorites(ctx)
	}

	if app.Market == nil {
		return nil, fmt.Errorf("market data client not configured")
	}
	tickers, err := app.Market.TopSymbols(ctx, top)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = t.Symbol
	}
	return symbols, nil
}

func scanReportOutput(report *scan.Report, crit scan.Criteria) map[string]interface{} {
	results := make([]scanResultOutput, 0, len(report.Results))
	for _, r := range report.Results {
		results = append(results, toScanOutput(r))
	}
	failed := make([]scanResultOutput, 0, len(report.Failed))
	for _, r := range report.Failed {
		failed = append(failed, toScanOutput(r))
	}
	sum := report.Summary()
	return map[string]interface{}{
		"interval":       report.Interval,
		"min_confidence": crit.MinConfidence,
		"scanned":        report.Total,
		"results":        results,
		"failed":         failed,
		"summary": map[string]interface{}{
			"matches":        sum.Matches,
			"bullish":        sum.Bullish,
			"bearish":        sum.Bearish,
			"avg_confidence": sum.AvgConfidence,
		},
	}
}

func renderScan(output *Output, report *scan.Report, crit scan.Criteria) {
	if len(report.Results) == 0 {
		output.Warning("No patterns at or above %.0f%% confidence in %d symbols", crit.MinConfidence, report.Total)
	} else {
		table := NewTable(output, "SYMBOL", "PATTERN", "SIGNAL", "CONFIDENCE", "PRICE", "TARGET 1", "STOP")
		for _, r := range report.Results {
			row := toScanOutput(r)
			target := "-"
			if len(row.Targets) > 0 {
				target = utils.FormatPrice(row.Targets[0])
			}
			table.AddRow(
				row.Symbol,
				row.Pattern,
				output.Action(row.Action),
				output.Confidence(row.Confidence),
				utils.FormatPrice(row.Price),
				target,
				utils.FormatPrice(row.StopLoss),
			)
		}
		table.Render()
	}

	sum := report.Summary()
	output.Println()
	output.Printf("Matches: %d/%d   Bullish: %s   Bearish: %s   Avg confidence: %s\n",
		sum.Matches, report.Total,
		output.Green(fmt.Sprintf("%d", sum.Bullish)),
		output.Red(fmt.Sprintf("%d", sum.Bearish)),
		utils.FormatConfidence(sum.AvgConfidence))

	if len(report.Failed) > 0 {
		output.Println()
		output.Warning("%d symbols failed:", len(report.Failed))
		for _, r := range report.Failed {
			output.Dim("  %s: %v", r.Symbol, r.Err)
		}
	}
	output.Dim("Scan took %s", report.Duration.Round(time.Millisecond))
}

func newCompareCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <symbol>",
		Short: "Compare a symbol's patterns across intervals",
		Long: `Analyze one symbol on several intervals and summarize whether the signals agree.
The consensus is bullish when more intervals say BUY than SELL, bearish for the
opposite and neutral otherwise.`,
		Example: `  elliott compare BTCUSDT
  elliott compare ETHUSDT --intervals 15m,1h,4h,1d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			symbol, err := marketdata.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			intervals, _ := cmd.Flags().GetStringSlice("intervals")
			limit, _ := cmd.Flags().GetInt("limit")
			if len(intervals) == 0 {
				intervals = app.Config.Scan.Intervals
			}
			if limit == 0 {
				limit = app.Config.Scan.Limit
			}
			for _, iv := range intervals {
				if err := marketdata.ValidateInterval(iv); err != nil {
					return err
				}
			}
			if err := marketdata.ValidateLimit(limit); err != nil {
				return err
			}

			scanner := scan.NewScanner(app.Analyzer, app.Config.Scan.Concurrency, logging.FromContext(cmd.Context()))
			cmp, err := scanner.CompareTimeframes(ctx, symbol, intervals, func(ctx context.Context, symbol, interval string) (models.Series, error) {
				series, _, err := app.candles(ctx, symbol, interval, limit)
				return series, err
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				rows := make([]scanResultOutput, len(cmp.Results))
				for i, r := range cmp.Results {
					rows[i] = toScanOutput(r)
				}
				return output.JSON(map[string]interface{}{
					"symbol":    cmp.Symbol,
					"results":   rows,
					"bullish":   cmp.Bullish,
					"bearish":   cmp.Bearish,
					"consensus": cmp.Consensus,
				})
			}

			output.Bold("%s across %s", symbol, strings.Join(intervals, ", "))
			table := NewTable(output, "INTERVAL", "TREND", "PATTERN", "SIGNAL", "CONFIDENCE")
			for _, r := range cmp.Results {
				row := toScanOutput(r)
				if row.Error != "" {
					table.AddRow(row.Interval, "-", output.Red("error"), "-", output.DimText(row.Error))
					continue
				}
				pattern := row.Pattern
				if pattern == "" {
					pattern = "-"
				}
				table.AddRow(row.Interval, output.Direction(row.Trend), pattern, output.Action(row.Action), output.Confidence(row.Confidence))
			}
			table.Render()
			output.Println()
			output.Printf("Consensus: %s (%d bullish, %d bearish)\n", output.Direction(cmp.Consensus), cmp.Bullish, cmp.Bearish)
			return nil
		},
	}

	cmd.Flags().StringSlice("intervals", nil, "intervals to compare (default from config)")
	cmd.Flags().IntP("limit", "l", 0, "number of candles per interval (default from config)")

	return cmd
}
