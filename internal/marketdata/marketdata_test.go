package marketdata

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/models"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"btcusdt", "BTCUSDT", false},
		{" ETHUSDT ", "ETHUSDT", false},
		{"PEPEUSD", "PEPEUSD", false},
		{"BTC", "", true},
		{"X1USDT", "", true},
		{"", "", true},
		{"VERYLONGNAMEUSDT", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeSymbol(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrInvalidSymbol) {
				t.Errorf("NormalizeSymbol(%q): expected ErrInvalidSymbol, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestValidateIntervalAndLimit(t *testing.T) {
	for _, iv := range []string{"1m", "4h", "1d", "1M"} {
		if err := ValidateInterval(iv); err != nil {
			t.Errorf("ValidateInterval(%q): %v", iv, err)
		}
	}
	for _, iv := range []string{"", "2d", "1H", "60m"} {
		if err := ValidateInterval(iv); !errors.Is(err, errors.ErrInvalidInterval) {
			t.Errorf("ValidateInterval(%q): expected ErrInvalidInterval, got %v", iv, err)
		}
	}

	tests := map[int]bool{49: false, 50: true, 200: true, 1000: true, 1001: false}
	for limit, ok := range tests {
		err := ValidateLimit(limit)
		if ok && err != nil {
			t.Errorf("ValidateLimit(%d): %v", limit, err)
		}
		if !ok && !errors.Is(err, errors.ErrInvalidLimit) {
			t.Errorf("ValidateLimit(%d): expected ErrInvalidLimit, got %v", limit, err)
		}
	}
}

func TestConvertKlines(t *testing.T) {
	klines := []*binance.Kline{
		{OpenTime: 1704067200000, Open: "100.5", High: "102", Low: "99.25", Close: "101", Volume: "1234.5"},
	}
	candles, err := convertKlines(klines)
	if err != nil {
		t.Fatalf("convertKlines: %v", err)
	}
	want := models.Candle{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      100.5,
		High:      102,
		Low:       99.25,
		Close:     101,
		Volume:    1234.5,
	}
	if len(candles) != 1 {
		t.Fatalf("expected one candle, got %d", len(candles))
	}
	got := candles[0]
	if !got.Timestamp.Equal(want.Timestamp) || got.Open != want.Open || got.High != want.High ||
		got.Low != want.Low || got.Close != want.Close || got.Volume != want.Volume {
		t.Errorf("got %+v, want %+v", got, want)
	}

	klines[0].High = "abc"
	_, err = convertKlines(klines)
	var inputErr *errors.InputError
	if !errors.As(err, &inputErr) || inputErr.Field != "high" || inputErr.Index != 0 {
		t.Errorf("expected input error on high, got %v", err)
	}
}

func TestRankSymbols(t *testing.T) {
	stats := []*binance.PriceChangeStats{
		{Symbol: "ETHUSDT", QuoteVolume: "500", LastPrice: "3000"},
		{Symbol: "BTCUSDT", QuoteVolume: "900", LastPrice: "60000"},
		{Symbol: "BTCUPUSDT", QuoteVolume: "5000"},
		{Symbol: "ETHDOWNUSDT", QuoteVolume: "4000"},
		{Symbol: "ETHBTC", QuoteVolume: "10000"},
		{Symbol: "SOLUSDT", QuoteVolume: "700"},
		{Symbol: "1000SATSUSDT", QuoteVolume: "800"},
	}

	got := rankSymbols(stats, 2)
	if len(got) != 2 || got[0].Symbol != "BTCUSDT" || got[1].Symbol != "SOLUSDT" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	if got[0].LastPrice != 60000 || got[0].QuoteVolume != 900 {
		t.Errorf("ticker not converted: %+v", got[0])
	}

	if all := rankSymbols(stats, 0); len(all) != 3 {
		t.Errorf("expected 3 eligible symbols, got %d", len(all))
	}
}

func TestLoadCSV(t *testing.T) {
	data := `timestamp,open,high,low,close,volume
2024-01-02T00:00:00Z,101,103,100,102,20
1704067200000,100,102,99,101,10
2024-01-03 00:00:00,102,104,101,103,30
`
	series, err := LoadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", series.Len())
	}
	for i := 1; i < series.Len(); i++ {
		if !series[i].Timestamp.After(series[i-1].Timestamp) {
			t.Errorf("series not sorted at %d", i)
		}
	}
	if series[0].Close != 101 || series.Last().Volume != 30 {
		t.Errorf("unexpected values: %+v", series)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, series); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	again, err := LoadCSV(&buf)
	if err != nil {
		t.Fatalf("LoadCSV after WriteCSV: %v", err)
	}
	if again.Len() != 3 || !again[2].Timestamp.Equal(series[2].Timestamp) {
		t.Errorf("written series does not load back: %+v", again)
	}

	_, err = LoadCSV(strings.NewReader("timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"))
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	cfg.MaxRetries = 1
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_Klines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "4h" || q.Get("limit") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1704067200000,"100.0","101.0","99.0","100.5","10.0",1704081599999,"1000.0",5,"5.0","500.0","0"],
			[1704081600000,"100.5","102.0","100.0","101.5","12.0",1704095999999,"1200.0",6,"6.0","600.0","0"]
		]`))
	})

	candles, err := client.Klines(context.Background(), "BTCUSDT", "4h", 2)
	if err != nil {
		t.Fatalf("Klines: %v", err)
	}
	if len(candles) != 2 || candles[1].Close != 101.5 || candles[0].Timestamp.Unix() != 1704067200 {
		t.Errorf("unexpected candles: %+v", candles)
	}

	if _, err := client.Klines(context.Background(), "BTCUSDT", "7h", 2); !errors.Is(err, errors.ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestClient_InvalidSymbolIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := client.Klines(context.Background(), "NOPEUSDT", "1h", 50)
	if !errors.Is(err, errors.ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single request, got %d", n)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","priceChange":"100","priceChangePercent":"0.5","lastPrice":"60000","volume":"10","quoteVolume":"600000","highPrice":"61000","lowPrice":"59000"},
			{"symbol":"ETHUSDT","priceChange":"5","priceChangePercent":"0.2","lastPrice":"3000","volume":"100","quoteVolume":"300000","highPrice":"3100","lowPrice":"2900"},
			{"symbol":"BNBUPUSDT","quoteVolume":"900000","lastPrice":"1"}
		]`))
	})

	tickers, err := client.TopSymbols(context.Background(), 5)
	if err != nil {
		t.Fatalf("TopSymbols: %v", err)
	}
	if len(tickers) != 2 || tickers[0].Symbol != "BTCUSDT" || tickers[0].High != 61000 {
		t.Errorf("unexpected tickers: %+v", tickers)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected one retry, got %d calls", n)
	}
}
