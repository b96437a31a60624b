// Command elliott detects Elliott Wave patterns in crypto market data.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"elliott-analyzer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
