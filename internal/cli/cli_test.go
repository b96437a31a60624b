package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"elliott-analyzer/internal/analysis/analysistest"
	"elliott-analyzer/internal/analysis/elliott"
	"elliott-analyzer/internal/config"
	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/marketdata"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/internal/store"
)

type fakeMarket struct {
	series  map[string]models.Series
	tickers []models.Ticker
	calls   int
}

func (f *fakeMarket) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	f.calls++
	s, ok := f.series[symbol]
	if !ok {
		return nil, errors.NewDataError("candles", symbol, "unknown symbol", errors.ErrInvalidSymbol)
	}
	return s, nil
}

func (f *fakeMarket) TopSymbols(ctx context.Context, n int) ([]models.Ticker, error) {
	if n < len(f.tickers) {
		return f.tickers[:n], nil
	}
	return f.tickers, nil
}

func impulseSeries() models.Series {
	return analysistest.SeriesFromCloses(analysistest.ImpulseCloses())
}

func fallingImpulseSeries() models.Series {
	closes := analysistest.ImpulseCloses()
	for i, c := range closes {
		closes[i] = 250 - c
	}
	return analysistest.SeriesFromCloses(closes)
}

func newTestMarket() *fakeMarket {
	return &fakeMarket{
		series: map[string]models.Series{
			"BTCUSDT": impulseSeries(),
			"ETHUSDT": fallingImpulseSeries(),
		},
		tickers: []models.Ticker{
			{Symbol: "BTCUSDT", LastPrice: 118.7, QuoteVolume: 2e9, ChangePercent: 1.5},
			{Symbol: "ETHUSDT", LastPrice: 131.3, QuoteVolume: 1e9, ChangePercent: -0.5},
		},
	}
}

func newTestApp(t *testing.T, market MarketData) *App {
	t.Helper()
	cfg := config.Default(t.TempDir())

	st, err := store.NewSQLiteStore(cfg.Storage.Path, cfg.Storage.HistorySize)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	analyzer, err := elliott.New(cfg.AnalyzerConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Market:   market,
		Store:    st,
		Cache:    store.NewCandleCache(st, cfg.Storage.CacheTTL, zerolog.Nop()),
		Analyzer: analyzer,
	}
	t.Cleanup(app.Close)
	return app
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

type analyzeJSON struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Source string `json:"source"`
	Result struct {
		Status         string `json:"status"`
		Recommendation struct {
			Action  string    `json:"action"`
			Targets []float64 `json:"targets"`
		} `json:"recommendation"`
		Patterns []struct {
			Family string `json:"family"`
		} `json:"patterns"`
	} `json:"result"`
}

func TestAnalyzeCmd_JSONSavesHistory(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	out, err := run(t, app, "analyze", "btcusdt", "--json")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	var got analyzeJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Symbol != "BTCUSDT" || got.Source != "binance" {
		t.Errorf("unexpected header: %+v", got)
	}
	if got.Result.Status != "success" || got.Result.Recommendation.Action != "BUY" {
		t.Errorf("expected a successful BUY, got %+v", got.Result)
	}
	if len(got.Result.Patterns) == 0 || got.Result.Patterns[0].Family != "impulse" {
		t.Errorf("expected an impulse first, got %+v", got.Result.Patterns)
	}
	if got.ID == "" {
		t.Fatal("expected the analysis to be saved")
	}

	out, err = run(t, app, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var records []models.AnalysisRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].ID != got.ID || records[0].Action != "BUY" || len(records[0].Result) != 0 {
		t.Errorf("unexpected history: %+v", records)
	}

	out, err = run(t, app, "history", "show", got.ID[:8])
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "BTCUSDT") || !strings.Contains(out, "BUY") {
		t.Errorf("show output missing symbol or signal:\n%s", out)
	}
}

func TestCommandsLogThroughContextLogger(t *testing.T) {
	app := newTestApp(t, newTestMarket())
	var logs bytes.Buffer
	app.Logger = zerolog.New(&logs)

	if out, err := run(t, app, "analyze", "BTCUSDT", "--save=false", "--json"); err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	if out, err := run(t, app, "scan", "BTCUSDT", "--json"); err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}

	var analyzeLine, scanLine string
	for _, line := range strings.Split(logs.String(), "\n") {
		switch {
		case strings.Contains(line, `"event":"analysis"`):
			analyzeLine = line
		case strings.Contains(line, "Scan complete"):
			scanLine = line
		}
	}
	if !strings.Contains(analyzeLine, `"operation":"analyze"`) || !strings.Contains(analyzeLine, `"symbol":"BTCUSDT"`) {
		t.Errorf("analysis event not tagged with the command: %q", analyzeLine)
	}
	if !strings.Contains(scanLine, `"operation":"scan"`) {
		t.Errorf("scan summary not tagged with the command: %q", scanLine)
	}
}

func TestAnalyzeCmd_TextOutput(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	out, err := run(t, app, "analyze", "ETHUSDT", "--save=false")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	for _, want := range []string{"ETHUSDT", "SELL", "Stop loss", "Patterns", "impulse", "Key levels"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	records, err := app.Store.GetAnalyses(context.Background(), store.HistoryFilter{})
	if err != nil || len(records) != 0 {
		t.Errorf("expected nothing saved, got %d records, %v", len(records), err)
	}
}

func TestAnalyzeCmd_FromFile(t *testing.T) {
	app := newTestApp(t, nil)

	path := filepath.Join(t.TempDir(), "btc_1h.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := marketdata.WriteCSV(f, impulseSeries()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := run(t, app, "analyze", "--file", path, "--json", "--save=false")
	if err != nil {
		t.Fatalf("analyze --file: %v\n%s", err, out)
	}
	var got analyzeJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Symbol != "BTC_1H" || got.Source != "file" || got.Result.Recommendation.Action != "BUY" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	if _, err := run(t, app, "analyze"); err == nil {
		t.Error("expected an error without symbol or file")
	}
	if _, err := run(t, app, "analyze", "BTC"); !errors.Is(err, errors.ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}
	if _, err := run(t, app, "analyze", "BTCUSDT", "--interval", "2h30"); !errors.Is(err, errors.ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := run(t, app, "analyze", "BTCUSDT", "--limit", "10"); !errors.Is(err, errors.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := run(t, app, "analyze", "XRPUSDT"); !errors.Is(err, errors.ErrInvalidSymbol) {
		t.Errorf("expected the exchange error to surface, got %v", err)
	}
}

func TestScanCmd_JSON(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	out, err := run(t, app, "scan", "--json", "--min-confidence", "70")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	var got struct {
		Scanned int `json:"scanned"`
		Results []struct {
			Symbol string `json:"symbol"`
			Action string `json:"action"`
		} `json:"results"`
		Summary struct {
			Bullish int `json:"bullish"`
			Bearish int `json:"bearish"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Scanned != 2 || len(got.Results) != 2 {
		t.Fatalf("expected both top symbols to match, got %+v", got)
	}
	if got.Summary.Bullish != 1 || got.Summary.Bearish != 1 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
}

func TestScanCmd_Favorites(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	if _, err := run(t, app, "favorites", "add", "ethusdt"); err != nil {
		t.Fatalf("favorites add: %v", err)
	}
	out, err := run(t, app, "scan", "--favorites", "--action", "sell", "--min-confidence", "70")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ETHUSDT") || strings.Contains(out, "BTCUSDT") {
		t.Errorf("expected only ETHUSDT in output:\n%s", out)
	}

	if _, err := run(t, app, "scan", "--action", "HOLD"); err == nil {
		t.Error("expected an error for an unknown action")
	}
}

func TestFavoritesCmd(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	if _, err := run(t, app, "favorites", "add", "BTCUSDT", "solusdt"); err != nil {
		t.Fatalf("favorites add: %v", err)
	}
	out, err := run(t, app, "favorites", "list", "--json")
	if err != nil {
		t.Fatalf("favorites list: %v", err)
	}
	var got map[string][]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(got["favorites"]) != 2 || got["favorites"][0] != "BTCUSDT" || got["favorites"][1] != "SOLUSDT" {
		t.Errorf("unexpected favorites %v", got)
	}

	if _, err := run(t, app, "favorites", "remove", "BTCUSDT"); err != nil {
		t.Fatalf("favorites remove: %v", err)
	}
	if _, err := run(t, app, "favorites", "remove", "BTCUSDT"); !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound removing twice, got %v", err)
	}
	if _, err := run(t, app, "favorites", "add", "nope"); !errors.Is(err, errors.ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}
}

func TestCompareCmd(t *testing.T) {
	app := newTestApp(t, newTestMarket())

	out, err := run(t, app, "compare", "BTCUSDT", "--json")
	if err != nil {
		t.Fatalf("compare: %v\n%s", err, out)
	}
	var got struct {
		Results   []json.RawMessage `json:"results"`
		Bullish   int               `json:"bullish"`
		Consensus string            `json:"consensus"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(got.Results) != 3 || got.Bullish != 3 || got.Consensus != "bullish" {
		t.Errorf("unexpected comparison %+v", got)
	}
}

func TestHistoryCmd_StatsExportClear(t *testing.T) {
	app := newTestApp(t, newTestMarket())
	for _, s := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		if _, err := run(t, app, "analyze", s, "--json"); err != nil {
			t.Fatalf("analyze %s: %v", s, err)
		}
	}

	out, err := run(t, app, "history", "stats", "--json")
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	var stats HistoryStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if stats.Total != 3 || stats.Bullish != 2 || stats.Bearish != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	path := filepath.Join(t.TempDir(), "history.csv")
	if _, err := run(t, app, "history", "export", "--format", "csv", "--symbol", "btc", "--output", path); err != nil {
		t.Fatalf("history export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "id,") {
		t.Errorf("expected header and two rows, got:\n%s", data)
	}

	if _, err := run(t, app, "history", "export", "--format", "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if _, err := run(t, app, "history", "clear"); err == nil {
		t.Error("expected clear to require --yes")
	}
	if _, err := run(t, app, "history", "clear", "--yes"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	records, _ := app.Store.GetAnalyses(context.Background(), store.HistoryFilter{})
	if len(records) != 0 {
		t.Errorf("expected empty history, got %d", len(records))
	}
}

func TestFetchCmd_WritesCSV(t *testing.T) {
	market := newTestMarket()
	app := newTestApp(t, market)

	out, err := run(t, app, "fetch", "BTCUSDT", "--limit", "50")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	series, err := marketdata.LoadCSV(strings.NewReader(out))
	if err != nil {
		t.Fatalf("fetched CSV does not load: %v", err)
	}
	if series.Len() != impulseSeries().Len() {
		t.Errorf("expected %d candles, got %d", impulseSeries().Len(), series.Len())
	}
}

func TestConfigAndVersionCmds(t *testing.T) {
	app := newTestApp(t, nil)
	app.Config.Binance.APISecret = "secret"

	out, err := run(t, app, "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret") && !strings.Contains(out, "********") {
		t.Errorf("API secret not masked:\n%s", out)
	}
	if app.Config.Binance.APISecret != "secret" {
		t.Error("config show must not modify the loaded configuration")
	}

	if _, err := run(t, app, "config", "validate"); err != nil {
		t.Errorf("config validate: %v", err)
	}
	app.Config.Scan.Limit = 5
	if _, err := run(t, app, "config", "validate"); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	out, err = run(t, app, "version")
	if err != nil || !strings.Contains(out, Version) {
		t.Errorf("unexpected version output %q, %v", out, err)
	}
}
