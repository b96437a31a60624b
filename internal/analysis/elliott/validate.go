package elliott

import (
	"fmt"
	"math"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

// ValidateSeries checks that the series can be analyzed: at least minBars bars, finite positive
// prices, high not below low and strictly increasing timestamps.
func ValidateSeries(series models.Series, minBars int) error {
	if len(series) < minBars {
		return errors.NewInputError("series", -1,
			fmt.Sprintf("insufficient data: need at least %d bars, got %d", minBars, len(series)))
	}

	for i, c := range series {
		prices := []struct {
			field string
			value float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
		}
		for _, p := range prices {
			if math.IsNaN(p.value) || math.IsInf(p.value, 0) || p.value <= 0 {
				return errors.NewInputError(p.field, i, fmt.Sprintf("price must be finite and positive, got %v", p.value))
			}
		}
		if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return errors.NewInputError("volume", i, fmt.Sprintf("volume must be finite and non-negative, got %v", c.Volume))
		}
		if c.High < c.Low {
			return errors.NewInputError("high", i, fmt.Sprintf("high %v is below low %v", c.High, c.Low))
		}
		if i > 0 && !c.Timestamp.After(series[i-1].Timestamp) {
			return errors.NewInputError("timestamp", i, "timestamps must be strictly increasing")
		}
	}
	return nil
}
