package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"elliott-analyzer/internal/marketdata"
	"elliott-analyzer/internal/store"
	"elliott-analyzer/pkg/utils"
)

// addDataCommands adds market data and favorites commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTopCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newFavoritesCmd(app))
}

func newTopCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most traded USDT pairs",
		Example: `  elliott top
  elliott top -n 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			n, _ := cmd.Flags().GetInt("count")
			if n <= 0 {
				n = app.Config.Scan.TopSymbols
			}
			if app.Market == nil {
				return fmt.Errorf("market data client not configured")
			}
			tickers, err := app.Market.TopSymbols(ctx, n)
			if err != nil {
				output.Error("Failed to get tickers: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(tickers)
			}
			table := NewTable(output, "#", "SYMBOL", "PRICE", "24H", "HIGH", "LOW", "QUOTE VOLUME")
			for i, t := range tickers {
				table.AddRow(
					fmt.Sprintf("%d", i+1),
					t.Symbol,
					utils.FormatPrice(t.LastPrice),
					output.Change(t.ChangePercent),
					utils.FormatPrice(t.High),
					utils.FormatPrice(t.Low),
					utils.FormatCompact(t.QuoteVolume),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 0, "number of symbols (default from config)")
	return cmd
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <symbol>",
		Short: "Download candles to a CSV file",
		Long: `Download candles for a symbol and write them as CSV, ready for 'elliott analyze --file'.
Candles are written to stdout unless --output is given.`,
		Example: `  elliott fetch BTCUSDT --interval 1d --limit 500 --output btc_1d.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			symbol, err := marketdata.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			interval, _ := cmd.Flags().GetString("interval")
			limit, _ := cmd.Flags().GetInt("limit")
			path, _ := cmd.Flags().GetString("output")
			if interval == "" {
				interval = app.Config.Scan.Interval
			}
			if limit == 0 {
				limit = app.Config.Scan.Limit
			}
			if err := marketdata.ValidateInterval(interval); err != nil {
				return err
			}
			if err := marketdata.ValidateLimit(limit); err != nil {
				return err
			}

			series, cached, err := app.candles(ctx, symbol, interval, limit)
			if err != nil {
				output.Error("Failed to get candles: %v", err)
				return err
			}

			if path == "" {
				return marketdata.WriteCSV(cmd.OutOrStdout(), series)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			if err := marketdata.WriteCSV(f, series); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			source := "exchange"
			if cached {
				source = "cache"
			}
			output.Success("✓ Wrote %d %s candles for %s to %s (from %s)", series.Len(), interval, symbol, path, source)
			if app.Cache != nil {
				output.Dim("Cache: %s", store.FormatFreshness(app.Cache.Freshness(symbol, interval)))
			}
			return nil
		},
	}

	cmd.Flags().StringP("interval", "i", "", "candle interval (default from config)")
	cmd.Flags().IntP("limit", "l", 0, "number of candles, 50-1000 (default from config)")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	return cmd
}

func newFavoritesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorite symbols",
		Long:    "Favorite symbols are kept in the local store and can be scanned with 'elliott scan --favorites'.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <symbol>...",
		Short: "Add symbols to favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}
			for _, a := range args {
				symbol, err := marketdata.NormalizeSymbol(a)
				if err != nil {
					return err
				}
				if err := app.Store.AddFavorite(cmd.Context(), symbol); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Success("★ %s added to favorites", symbol)
				}
			}
			if output.IsJSON() {
				return printFavoritesJSON(cmd.Context(), app, output)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <symbol>",
		Aliases: []string{"rm"},
		Short:   "Remove a symbol from favorites",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}
			symbol, err := marketdata.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			if err := app.Store.RemoveFavorite(cmd.Context(), symbol); err != nil {
				output.Error("%s is not a favorite", symbol)
				return err
			}
			if output.IsJSON() {
				return printFavoritesJSON(cmd.Context(), app, output)
			}
			output.Success("☆ %s removed from favorites", symbol)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List favorite symbols",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.requireStore(); err != nil {
				return err
			}
			if output.IsJSON() {
				return printFavoritesJSON(cmd.Context(), app, output)
			}
			favorites, err := app.Store.GetFavorites(cmd.Context())
			if err != nil {
				return err
			}
			if len(favorites) == 0 {
				output.Dim("No favorites yet. Add one with 'elliott favorites add BTCUSDT'.")
				return nil
			}
			for _, f := range favorites {
				output.Printf("★ %s\n", f)
			}
			return nil
		},
	})

	return cmd
}

func printFavoritesJSON(ctx context.Context, app *App, output *Output) error {
	favorites, err := app.Store.GetFavorites(ctx)
	if err != nil {
		return err
	}
	if favorites == nil {
		favorites = []string{}
	}
	return output.JSON(map[string][]string{"favorites": favorites})
}
