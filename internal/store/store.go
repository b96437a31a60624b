// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"elliott-analyzer/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	// Analysis history
	SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error
	GetAnalyses(ctx context.Context, filter HistoryFilter) ([]models.AnalysisRecord, error)
	GetAnalysisByID(ctx context.Context, id string) (*models.AnalysisRecord, error)
	DeleteAnalysis(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) (int64, error)

	// Favorites
	AddFavorite(ctx context.Context, symbol string) error
	RemoveFavorite(ctx context.Context, symbol string) error
	GetFavorites(ctx context.Context) ([]string, error)
	IsFavorite(ctx context.Context, symbol string) (bool, error)

	// Sync
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// HistoryFilter represents filters for querying saved analyses.
type HistoryFilter struct {
	Symbol        string
	Interval      string
	Action        string
	MinConfidence float64
	Limit         int
}

// CandleSyncKey is the sync status key for a symbol's cached candles.
func CandleSyncKey(symbol, timeframe string) string {
	return "candles:" + symbol + ":" + timeframe
}
