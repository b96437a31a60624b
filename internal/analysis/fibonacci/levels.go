package fibonacci

// Standard retracement ratios used for support and resistance.
var DefaultRetracementRatios = []float64{0.382, 0.500, 0.618}

// Levels represents Fibonacci retracement prices of a swing.
type Levels struct {
	SwingHigh float64
	SwingLow  float64
	IsUptrend bool
	Prices    map[float64]float64
}

// RetracementLevels calculates retracement prices for the swing between high and low. An
// uptrend retraces down from the high, a downtrend retraces up from the low.
func RetracementLevels(swingHigh, swingLow float64, isUptrend bool, ratios []float64) Levels {
	diff := swingHigh - swingLow

	levels := Levels{
		SwingHigh: swingHigh,
		SwingLow:  swingLow,
		IsUptrend: isUptrend,
		Prices:    make(map[float64]float64, len(ratios)),
	}
	for _, r := range ratios {
		if isUptrend {
			levels.Prices[r] = swingHigh - diff*r
		} else {
			levels.Prices[r] = swingLow + diff*r
		}
	}
	return levels
}

// Values returns the level prices in the order of ratios.
func (l Levels) Values(ratios []float64) []float64 {
	out := make([]float64, 0, len(ratios))
	for _, r := range ratios {
		if v, ok := l.Prices[r]; ok {
			out = append(out, v)
		}
	}
	return out
}
