package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/pkg/utils"
)

// FetchFunc fetches the newest limit candles for a symbol.
type FetchFunc func(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)

// DataFreshness represents the freshness of cached candles.
type DataFreshness struct {
	Key         string
	LastUpdated time.Time
	IsFresh     bool
	Age         time.Duration
}

// CandleCache serves candles from the store while they are fresh and refreshes them through a
// FetchFunc otherwise. Stale candles are served when a refresh fails.
type CandleCache struct {
	store  DataStore
	ttl    time.Duration
	logger zerolog.Logger
	retry  utils.RetryConfig
	now    func() time.Time
}

// NewCandleCache creates a candle cache. A non-positive ttl disables cache hits, candles are
// still written so that they can serve as fallback.
func NewCandleCache(store DataStore, ttl time.Duration, logger zerolog.Logger) *CandleCache {
	return &CandleCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		retry: utils.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2.0,
			Retryable:     isBusy,
		},
		now: time.Now,
	}
}

// isBusy reports whether a write failed on a locked database. Concurrent scans write candles
// from several goroutines.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Freshness returns the freshness of the cached candles for a symbol and interval.
func (c *CandleCache) Freshness(symbol, interval string) *DataFreshness {
	key := CandleSyncKey(symbol, interval)
	lastSync := c.store.GetLastSync(key)
	age := c.now().Sub(lastSync)

	return &DataFreshness{
		Key:         key,
		LastUpdated: lastSync,
		IsFresh:     !lastSync.IsZero() && age < c.ttl,
		Age:         age,
	}
}

// Candles returns the newest limit candles and whether they came from the cache.
func (c *CandleCache) Candles(ctx context.Context, symbol, interval string, limit int, fetch FetchFunc) ([]models.Candle, bool, error) {
	cached, err := c.store.GetLatestCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached candles: %w", err)
	}

	freshness := c.Freshness(symbol, interval)
	if freshness.IsFresh && len(cached) >= limit {
		c.logger.Debug().
			Str("symbol", symbol).
			Str("interval", interval).
			Dur("age", freshness.Age).
			Msg("Serving cached candles")
		return cached, true, nil
	}

	candles, err := fetch(ctx, symbol, interval, limit)
	if err != nil {
		if len(cached) > 0 {
			c.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Str("interval", interval).
				Str("freshness", FormatFreshness(freshness)).
				Msg("Fetch failed, serving stale candles")
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("failed to fetch candles and no cache available: %w", err)
	}

	err = utils.Retry(ctx, c.retry, func() error {
		return c.store.SaveCandles(ctx, symbol, interval, candles)
	})
	if err != nil {
		// We have the data, the cache is best effort.
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache candles")
		return candles, false, nil
	}
	if err := c.store.SetLastSync(freshness.Key, c.now()); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to mark candles synced")
	}

	return candles, false, nil
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(freshness *DataFreshness) string {
	if freshness.LastUpdated.IsZero() {
		return "Never synced"
	}

	age := freshness.Age
	var ageStr string

	switch {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if freshness.IsFresh {
		return fmt.Sprintf("Updated %s", ageStr)
	}
	return fmt.Sprintf("Stale data, updated %s", ageStr)
}
