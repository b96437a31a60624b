package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"elliott-analyzer/internal/analysis"
	"elliott-analyzer/pkg/utils"
)

const confidenceBarWidth = 10

// ConfidenceBar renders a confidence in [0, 100] as a fixed width bar, one cell per ten points.
func ConfidenceBar(confidence float64) string {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	filled := int(math.Round(confidence / 100 * confidenceBarWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > confidenceBarWidth {
		filled = confidenceBarWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", confidenceBarWidth-filled)
}

// PercentChange returns the move from entry to price in percent. It is zero for a
// non-positive entry.
func PercentChange(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (price - entry) / entry * 100
}

// FormatLevel formats a price level together with its distance from entry, for example
// "64,250.50 (+2.50%)".
func FormatLevel(entry, level float64) string {
	return fmt.Sprintf("%s (%s)", utils.FormatPrice(level), utils.FormatPercent(PercentChange(entry, level)))
}

// FormatPattern names a pattern, for example "zigzag" or "expanded flat".
func FormatPattern(p analysis.Pattern) string {
	if p.Subtype == "" || p.Subtype == string(p.Family) {
		return string(p.Family)
	}
	return p.Subtype + " " + string(p.Family)
}

// FormatWaves lists the wave labels of a pattern with their end prices.
func FormatWaves(p analysis.Pattern) string {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		parts = append(parts, fmt.Sprintf("%s→%s", s.Label, utils.FormatPrice(s.End.Price)))
	}
	return strings.Join(parts, "  ")
}

// FormatPrices joins prices with commas.
func FormatPrices(prices []float64) string {
	if len(prices) == 0 {
		return "-"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = utils.FormatPrice(p)
	}
	return strings.Join(parts, ", ")
}

// FormatAge formats how long ago t was.
func FormatAge(t time.Time, now time.Time) string {
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// ShortID returns the first eight characters of a record ID.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
