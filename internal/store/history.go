package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/models"
)

// NewAnalysisRecord builds a history record from an analysis result.
func NewAnalysisRecord(symbol, interval string, res *elliott.Result) (*models.AnalysisRecord, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	record := &models.AnalysisRecord{
		Symbol:    symbol,
		Interval:  interval,
		CreatedAt: time.Now(),
		Status:    string(res.Status),
		Price:     res.CurrentPrice,
		Trend:     string(res.Trend),
		Result:    data,
	}
	if res.OK() {
		record.Action = string(res.Recommendation.Action)
		record.Confidence = res.Recommendation.Confidence
	}
	if best := res.Best(); best != nil {
		record.BestPattern = string(best.Family)
		if best.Subtype != "" {
			record.BestPattern += "/" + best.Subtype
		}
	}
	return record, nil
}

// DecodeResult restores the analysis result stored in a record.
func DecodeResult(record *models.AnalysisRecord) (*elliott.Result, error) {
	if len(record.Result) == 0 {
		return nil, fmt.Errorf("analysis %s has no stored result", record.ID)
	}
	var res elliott.Result
	if err := json.Unmarshal(record.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to decode analysis %s: %w", record.ID, err)
	}
	return &res, nil
}

// historyRow is the CSV shape of a history record.
type historyRow struct {
	ID          string  `csv:"id"`
	CreatedAt   string  `csv:"created_at"`
	Symbol      string  `csv:"symbol"`
	Interval    string  `csv:"interval"`
	Status      string  `csv:"status"`
	Action      string  `csv:"action"`
	Confidence  float64 `csv:"confidence"`
	Price       float64 `csv:"price"`
	Trend       string  `csv:"trend"`
	BestPattern string  `csv:"best_pattern"`
}

// ExportHistoryCSV writes records as CSV with a header row.
func ExportHistoryCSV(w io.Writer, records []models.AnalysisRecord) error {
	rows := make([]*historyRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &historyRow{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
			Symbol:      r.Symbol,
			Interval:    r.Interval,
			Status:      r.Status,
			Action:      r.Action,
			Confidence:  r.Confidence,
			Price:       r.Price,
			Trend:       r.Trend,
			BestPattern: r.BestPattern,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	return nil
}

// ExportHistoryJSON writes records as an indented JSON array.
func ExportHistoryJSON(w io.Writer, records []models.AnalysisRecord) error {
	if records == nil {
		records = []models.AnalysisRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	return nil
}
