package cli

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"elliott-analyzer/internal/analysis"
)

// For any confidence the bar has a fixed width and one filled cell per ten points, clamped to
// the bar.
func TestProperty_ConfidenceBar(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bar has fixed width and proportional fill", prop.ForAll(
		func(confidence float64) bool {
			bar := ConfidenceBar(confidence)
			if utf8.RuneCountInString(bar) != confidenceBarWidth {
				t.Logf("bar %q for %f has wrong width", bar, confidence)
				return false
			}
			filled := strings.Count(bar, "█")
			want := int(math.Round(confidence / 100 * confidenceBarWidth))
			if want < 0 {
				want = 0
			}
			if want > confidenceBarWidth {
				want = confidenceBarWidth
			}
			return filled == want
		},
		gen.Float64Range(-50, 150),
	))

	properties.Property("fill never decreases with confidence", prop.ForAll(
		func(a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			return strings.Count(ConfidenceBar(a), "█") <= strings.Count(ConfidenceBar(b), "█")
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

// The sign of the formatted distance always matches the side of entry the level is on.
func TestProperty_FormatLevelSign(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("percent sign follows level side", prop.ForAll(
		func(entry, factor float64) bool {
			level := entry * factor
			s := FormatLevel(entry, level)
			open := strings.Index(s, "(")
			if open < 0 || !strings.HasSuffix(s, "%)") {
				return false
			}
			pct := s[open+1:]
			switch {
			case PercentChange(entry, level) >= 0.005:
				return strings.HasPrefix(pct, "+")
			case PercentChange(entry, level) <= -0.005:
				return strings.HasPrefix(pct, "-")
			default:
				return true
			}
		},
		gen.Float64Range(0.0001, 100000),
		gen.Float64Range(0.5, 1.5),
	))

	properties.TestingRun(t)
}

// Colored table cells are measured by their visible width.
func TestProperty_VisibleLenIgnoresColor(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	o := &Output{colorEnabled: true}
	properties.Property("colors add no visible width", prop.ForAll(
		func(s string) bool {
			return visibleLen(o.Green(s)) == utf8.RuneCountInString(s) &&
				visibleLen(o.paint(color.Bold, color.FgRed).Sprint(s)) == utf8.RuneCountInString(s)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		entry, price, want float64
	}{
		{100, 110, 10},
		{100, 95, -5},
		{0, 10, 0},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		if got := PercentChange(tt.entry, tt.price); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PercentChange(%v, %v) = %v, want %v", tt.entry, tt.price, got, tt.want)
		}
	}
}

func TestFormatPattern(t *testing.T) {
	tests := []struct {
		p    analysis.Pattern
		want string
	}{
		{analysis.Pattern{Family: analysis.FamilyZigzag, Subtype: "zigzag"}, "zigzag"},
		{analysis.Pattern{Family: analysis.FamilyFlat, Subtype: "expanded"}, "expanded flat"},
		{analysis.Pattern{Family: analysis.FamilyImpulse}, "impulse"},
	}
	for _, tt := range tests {
		if got := FormatPattern(tt.p); got != tt.want {
			t.Errorf("FormatPattern(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := map[time.Duration]string{
		10 * time.Second: "just now",
		5 * time.Minute:  "5m ago",
		3 * time.Hour:    "3h ago",
		50 * time.Hour:   "2d ago",
	}
	for age, want := range tests {
		if got := FormatAge(now.Add(-age), now); got != want {
			t.Errorf("FormatAge(-%s) = %q, want %q", age, got, want)
		}
	}
}

func TestTableRender(t *testing.T) {
	var buf strings.Builder
	o := &Output{writer: &buf}
	table := NewTable(o, "SYMBOL", "SIGNAL")
	table.AddRow("BTCUSDT", "BUY")
	table.AddRow("ETH", "SELL")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and two rows, got %q", buf.String())
	}
	if lines[0] != "SYMBOL   SIGNAL" || lines[3] != "ETH      SELL" {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestComputeHistoryStats(t *testing.T) {
	stats := ComputeHistoryStats(nil)
	if stats != (HistoryStats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}
