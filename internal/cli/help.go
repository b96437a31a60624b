package cli

import (
	"github.com/spf13/cobra"
)

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "Analyze a symbol",
		commands: []string{
			"elliott analyze BTCUSDT",
			"elliott analyze ETHUSDT --interval 1d --limit 500",
			"elliott analyze BTCUSDT --json | jq .result.recommendation",
		},
	},
	{
		title: "Work offline",
		commands: []string{
			"elliott fetch BTCUSDT --interval 4h --output btc_4h.csv",
			"elliott analyze --file btc_4h.csv",
		},
	},
	{
		title: "Find setups",
		commands: []string{
			"elliott top -n 30",
			"elliott scan --top 30 --min-confidence 80",
			"elliott favorites add BTCUSDT ETHUSDT SOLUSDT",
			"elliott scan --favorites --action BUY",
			"elliott compare BTCUSDT --intervals 1h,4h,1d",
		},
	},
	{
		title: "Review history",
		commands: []string{
			"elliott history list --symbol BTC",
			"elliott history show 3f2a9c1e",
			"elliott history stats",
			"elliott history export --format csv --output history.csv",
		},
	},
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}
			for i, w := range workflows {
				if i > 0 {
					output.Println()
				}
				output.Bold(w.title)
				for _, c := range w.commands {
					output.Printf("  %s\n", output.Cyan(c))
				}
			}
			output.Println()
			output.Dim("Run 'elliott <command> --help' for all flags.")
			return nil
		},
	}
}
