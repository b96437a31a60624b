package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"elliott-analyzer/internal/analysis/signal"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/internal/store"
	"elliott-analyzer/pkg/utils"
)

// highConfidence is the confidence above which a saved analysis counts as high confidence.
const highConfidence = 80

// HistoryStats summarizes saved analyses.
type HistoryStats struct {
	Total          int `json:"total"`
	Bullish        int `json:"bullish"`
	Bearish        int `json:"bearish"`
	HighConfidence int `json:"high_confidence"`
}

// ComputeHistoryStats counts buy, sell and high confidence records.
func ComputeHistoryStats(records []models.AnalysisRecord) HistoryStats {
	stats := HistoryStats{Total: len(records)}
	for _, r := range records {
		switch signal.Action(r.Action) {
		case signal.ActionBuy:
			stats.Bullish++
		case signal.ActionSell:
			stats.Bearish++
		}
		if r.Confidence > highConfidence {
			stats.HighConfidence++
		}
	}
	return stats
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved analyses",
		Long: `Every analysis run with 'elliott analyze' is saved to the local history. Only the most
recent analyses are kept (storage.history_size, 50 by default).

IDs can be abbreviated to any unique prefix.`,
	}

	cmd.AddCommand(newHistoryListCmd(app))
	cmd.AddCommand(newHistoryShowCmd(app))
	cmd.AddCommand(newHistoryDeleteCmd(app))
	cmd.AddCommand(newHistoryExportCmd(app))
	cmd.AddCommand(newHistoryClearCmd(app))
	cmd.AddCommand(newHistoryStatsCmd(app))

	return cmd
}

func historyFilterFromFlags(cmd *cobra.Command) store.HistoryFilter {
	symbol, _ := cmd.Flags().GetString("symbol")
	action, _ := cmd.Flags().GetString("action")
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")
	return store.HistoryFilter{
		Symbol:        symbol,
		Action:        action,
		MinConfidence: minConf,
		Limit:         limit,
	}
}

func addHistoryFilterFlags(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol (substring match)")
	cmd.Flags().String("action", "", "filter by action (BUY, SELL, WAIT)")
	cmd.Flags().Float64P("min-confidence", "c", 0, "minimum confidence")
	cmd.Flags().IntP("limit", "l", defaultLimit, "maximum number of records (0 for all)")
}

func newHistoryListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved analyses, newest first",
		Example: `  elliott history list
  elliott history list --symbol BTC --action BUY`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}

			records, err := app.Store.GetAnalyses(cmd.Context(), historyFilterFromFlags(cmd))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if records == nil {
					records = []models.AnalysisRecord{}
				}
				for i := range records {
					records[i].Result = nil
				}
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No saved analyses")
				return nil
			}

			now := time.Now()
			table := NewTable(output, "ID", "WHEN", "SYMBOL", "INTERVAL", "PATTERN", "SIGNAL", "CONFIDENCE", "PRICE")
			for _, r := range records {
				pattern := r.BestPattern
				if pattern == "" {
					pattern = "-"
				}
				table.AddRow(
					ShortID(r.ID),
					FormatAge(r.CreatedAt, now),
					r.Symbol,
					r.Interval,
					pattern,
					output.Action(signal.Action(r.Action)),
					utils.FormatConfidence(r.Confidence),
					utils.FormatPrice(r.Price),
				)
			}
			table.Render()
			return nil
		},
	}
	addHistoryFilterFlags(cmd, 20)
	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}

			record, err := app.Store.GetAnalysisByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := store.DecodeResult(record)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(analysisOutput{
					ID:       record.ID,
					Symbol:   record.Symbol,
					Interval: record.Interval,
					Source:   "history",
					Result:   res,
				})
			}
			output.Dim("Saved %s (%s)", record.CreatedAt.Local().Format(app.Config.UI.DateFormat), record.ID)
			renderAnalysis(output, record.Symbol, record.Interval, res, app.Config.UI.DateFormat)
			return nil
		},
	}
}

func newHistoryDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}

			record, err := app.Store.GetAnalysisByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := app.Store.DeleteAnalysis(cmd.Context(), record.ID); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": record.ID})
			}
			output.Success("✓ Deleted %s analysis %s", record.Symbol, ShortID(record.ID))
			return nil
		},
	}
}

func newHistoryExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved analyses as JSON or CSV",
		Example: `  elliott history export --format csv --output history.csv
  elliott history export --symbol ETH > eth.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			path, _ := cmd.Flags().GetString("output")
			format = strings.ToLower(format)
			if format != "json" && format != "csv" {
				return fmt.Errorf("invalid --format %q (use json or csv)", format)
			}

			records, err := app.Store.GetAnalyses(cmd.Context(), historyFilterFromFlags(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var f *os.File
			if path != "" {
				if f, err = os.Create(path); err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				w = f
			}

			if format == "csv" {
				err = store.ExportHistoryCSV(w, records)
			} else {
				err = store.ExportHistoryJSON(w, records)
			}
			if f != nil {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}
			if err != nil {
				return err
			}
			if path != "" {
				output.Success("✓ Exported %d analyses to %s", len(records), path)
			}
			return nil
		},
	}
	addHistoryFilterFlags(cmd, 0)
	cmd.Flags().String("format", "json", "export format: json or csv")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func newHistoryClearCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}

			n, err := app.Store.ClearHistory(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("✓ Cleared %d analyses", n)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "confirm deletion")
	return cmd
}

func newHistoryStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize saved analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}

			records, err := app.Store.GetAnalyses(cmd.Context(), store.HistoryFilter{})
			if err != nil {
				return err
			}
			stats := ComputeHistoryStats(records)
			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Bold("History")
			output.Printf("  Total:            %d\n", stats.Total)
			output.Printf("  Bullish (BUY):    %s\n", output.Green(fmt.Sprintf("%d", stats.Bullish)))
			output.Printf("  Bearish (SELL):   %s\n", output.Red(fmt.Sprintf("%d", stats.Bearish)))
			output.Printf("  High confidence:  %d (> %d%%)\n", stats.HighConfidence, highConfidence)
			return nil
		},
	}
}
