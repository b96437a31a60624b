// Package marketdata fetches and loads candle series for analysis.
package marketdata

import (
	"fmt"
	"regexp"
	"strings"

	"elliott-analyzer/internal/errors"
)

// Limits on the number of bars requested per analysis.
const (
	MinLimit     = 50
	MaxLimit     = 1000
	DefaultLimit = 200
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{2,10}USDT?$`)

// ValidIntervals lists the kline intervals the exchange accepts.
var ValidIntervals = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// NormalizeSymbol upper-cases and validates a trading pair such as BTCUSDT.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected a USDT pair like BTCUSDT)", errors.ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// ValidateInterval checks that interval is a supported kline interval. Intervals are case
// sensitive: 1m is a minute and 1M a month.
func ValidateInterval(interval string) error {
	for _, v := range ValidIntervals {
		if v == interval {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (valid: %s)", errors.ErrInvalidInterval, interval, strings.Join(ValidIntervals, ", "))
}

// ValidateLimit checks that limit is within the supported bar range.
func ValidateLimit(limit int) error {
	if limit < MinLimit || limit > MaxLimit {
		return fmt.Errorf("%w: %d (must be between %d and %d)", errors.ErrInvalidLimit, limit, MinLimit, MaxLimit)
	}
	return nil
}
