// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

// DefaultHistorySize is the number of analyses kept when no size is configured.
const DefaultHistorySize = 50

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db          *sql.DB
	historySize int
	mu          sync.RWMutex
	syncTimes   map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store. Only the newest historySize analyses
// are kept.
func NewSQLiteStore(dbPath string, historySize int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if historySize < 1 {
		historySize = DefaultHistorySize
	}

	store := &SQLiteStore{
		db:          db,
		historySize: historySize,
		syncTimes:   make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for cached OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Saved analyses, newest has the highest seq
	CREATE TABLE IF NOT EXISTS analyses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		action TEXT,
		confidence REAL,
		price REAL,
		trend TEXT,
		best_pattern TEXT,
		result TEXT
	);

	-- Favorite symbols
	CREATE TABLE IF NOT EXISTS favorites (
		symbol TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_analyses_symbol ON analyses(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database. Candles with an existing timestamp are replaced.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles between from and to, oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestCandles retrieves the newest limit candles, oldest first.
func (s *SQLiteStore) GetLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	latest, err := s.GetLatestCandles(ctx, symbol, timeframe, 1)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if len(latest) == 0 {
		return time.Time{}, nil
	}
	return latest[0].Timestamp, nil
}

// ============================================================================
// Analysis History Methods
// ============================================================================

// SaveAnalysis saves an analysis record and prunes the history to its configured size. A record
// without an ID or creation time gets one assigned.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, symbol, interval, created_at, status, action, confidence, price, trend, best_pattern, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Symbol, record.Interval, record.CreatedAt.UTC(), record.Status, record.Action,
		record.Confidence, record.Price, record.Trend, record.BestPattern, string(record.Result))
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM analyses WHERE seq NOT IN (
			SELECT seq FROM analyses ORDER BY seq DESC LIMIT ?
		)
	`, s.historySize)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAnalyses retrieves saved analyses, newest first. The full result is not loaded.
func (s *SQLiteStore) GetAnalyses(ctx context.Context, filter HistoryFilter) ([]models.AnalysisRecord, error) {
	query := "SELECT id, symbol, interval, created_at, status, action, confidence, price, trend, best_pattern FROM analyses WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol LIKE ?"
		args = append(args, "%"+strings.ToUpper(filter.Symbol)+"%")
	}
	if filter.Interval != "" {
		query += " AND interval = ?"
		args = append(args, filter.Interval)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, strings.ToUpper(filter.Action))
	}
	if filter.MinConfidence > 0 {
		query += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		var action, trend, pattern sql.NullString
		var confidence, price sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Interval, &r.CreatedAt, &r.Status, &action, &confidence, &price, &trend, &pattern); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		r.Action = action.String
		r.Confidence = confidence.Float64
		r.Price = price.Float64
		r.Trend = trend.String
		r.BestPattern = pattern.String
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetAnalysisByID retrieves a saved analysis including its full result. IDs may be shortened
// to any unique prefix.
func (s *SQLiteStore) GetAnalysisByID(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, interval, created_at, status, action, confidence, price, trend, best_pattern, result
		FROM analyses WHERE id LIKE ? ORDER BY seq DESC LIMIT 2
	`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	defer rows.Close()

	var found []models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		var action, trend, pattern, result sql.NullString
		var confidence, price sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Interval, &r.CreatedAt, &r.Status, &action, &confidence, &price, &trend, &pattern, &result); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		r.Action = action.String
		r.Confidence = confidence.Float64
		r.Price = price.Float64
		r.Trend = trend.String
		r.BestPattern = pattern.String
		if result.Valid && result.String != "" {
			r.Result = []byte(result.String)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, errors.NewDataError("analysis", id, "no saved analysis with this id", errors.ErrDataNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, errors.NewValidationError("id", id, "prefix matches more than one analysis")
	}
}

// DeleteAnalysis removes a saved analysis by full ID.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewDataError("analysis", id, "no saved analysis with this id", errors.ErrDataNotFound)
	}
	return nil
}

// ClearHistory removes every saved analysis and returns how many were deleted.
func (s *SQLiteStore) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================================
// Favorites Methods
// ============================================================================

// AddFavorite adds a symbol to the favorites. Adding an existing favorite is a no-op.
func (s *SQLiteStore) AddFavorite(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO favorites (symbol) VALUES (?)
	`, symbol)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite removes a symbol from the favorites.
func (s *SQLiteStore) RemoveFavorite(ctx context.Context, symbol string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE symbol = ?
	`, symbol)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewDataError("favorite", symbol, "symbol is not a favorite", errors.ErrDataNotFound)
	}
	return nil
}

// GetFavorites retrieves favorite symbols in the order they were added.
func (s *SQLiteStore) GetFavorites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol FROM favorites ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// IsFavorite reports whether symbol is a favorite.
func (s *SQLiteStore) IsFavorite(ctx context.Context, symbol string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE symbol = ?`, symbol).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return n > 0, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a key.
func (s *SQLiteStore) GetLastSync(key string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, key).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[key] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a key.
func (s *SQLiteStore) SetLastSync(key string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, key, t.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[key] = t
	s.mu.Unlock()

	return nil
}
