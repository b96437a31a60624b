// Package models provides domain models for the analyzer.
package models

import (
	"encoding/json"
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// Series is a chronological sequence of candles with no duplicate timestamps.
type Series []Candle

// Len returns the number of candles in the series.
func (s Series) Len() int {
	return len(s)
}

// Last returns the most recent candle. It panics on an empty series.
func (s Series) Last() Candle {
	return s[len(s)-1]
}

// Closes returns the close prices of the series.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close
	}
	return closes
}

// Tail returns the last n candles, or the whole series when shorter.
func (s Series) Tail(n int) Series {
	if n >= len(s) || n < 0 {
		return s
	}
	return s[len(s)-n:]
}

// Ticker is a 24h summary for a symbol as reported by the exchange.
type Ticker struct {
	Symbol        string
	LastPrice     float64
	PriceChange   float64
	ChangePercent float64
	Volume        float64
	QuoteVolume   float64
	High          float64
	Low           float64
}

// AnalysisRecord is a saved analysis outcome. Result holds the full analysis as JSON.
type AnalysisRecord struct {
	ID          string          `json:"id" csv:"id"`
	Symbol      string          `json:"symbol" csv:"symbol"`
	Interval    string          `json:"interval" csv:"interval"`
	CreatedAt   time.Time       `json:"created_at" csv:"created_at"`
	Status      string          `json:"status" csv:"status"`
	Action      string          `json:"action" csv:"action"`
	Confidence  float64         `json:"confidence" csv:"confidence"`
	Price       float64         `json:"price" csv:"price"`
	Trend       string          `json:"trend" csv:"trend"`
	BestPattern string          `json:"best_pattern" csv:"best_pattern"`
	Result      json.RawMessage `json:"result,omitempty" csv:"-"`
}
