package marketdata

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

// csvCandle is the on-disk shape of a candle. Timestamps are kept as text so that files
// exported by different tools load without a custom decoder.
type csvCandle struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadCSV reads a candle series from CSV with a header row of timestamp, open, high, low,
// close, volume. Rows are returned oldest first.
func LoadCSV(r io.Reader) (models.Series, error) {
	var rows []*csvCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "reading candle csv: %v", err)
	}

	series := make(models.Series, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row.Timestamp)
		if err != nil {
			return nil, errors.NewInputError("timestamp", i, err.Error())
		}
		series = append(series, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series, nil
}

// LoadCSVFile reads a candle series from a CSV file.
func LoadCSVFile(path string) (models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candle file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// WriteCSV writes a candle series as CSV with RFC 3339 timestamps.
func WriteCSV(w io.Writer, series models.Series) error {
	rows := make([]*csvCandle, 0, len(series))
	for _, c := range series {
		rows = append(rows, &csvCandle{
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing candle csv: %w", err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339, common date layouts and unix epochs in seconds or
// milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
