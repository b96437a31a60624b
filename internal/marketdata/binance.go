package marketdata

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"elliott-analyzer/internal/errors"
	"elliott-analyzer/internal/logging"
	"elliott-analyzer/internal/models"
	"elliott-analyzer/pkg/utils"
)

// Binance API error codes that are not worth retrying.
const (
	codeTooManyRequests = -1003
	codeBadInterval     = -1120
	codeBadSymbol       = -1121
)

// Leveraged tokens are excluded from symbol rankings.
var leveragedSuffixes = []string{"UPUSDT", "DOWNUSDT", "BULLUSDT", "BEARUSDT"}

// ClientConfig holds the Binance client settings.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 10,
		Burst:             5,
		Timeout:           15 * time.Second,
		MaxRetries:        3,
	}
}

// Client fetches market data from the Binance spot REST API.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewClient creates a rate limited Binance client. Keys are optional for public market data.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	api := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		api.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	api.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	retry.Retryable = isRetryable

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultClientConfig().RequestsPerSecond
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		retry:   retry,
		logger:  logger,
	}
}

// Klines fetches the newest limit candles for symbol, oldest first.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if err := ValidateInterval(interval); err != nil {
		return nil, err
	}

	klines, err := utils.RetryWithResult(ctx, c.retry, func() ([]*binance.Kline, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		res, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		logging.LogAPICall(logging.WithSymbol(c.logger, symbol), http.MethodGet, "/api/v3/klines", time.Since(start), err)
		return res, err
	})
	if err != nil {
		return nil, classify(err, "candles", symbol)
	}
	if len(klines) == 0 {
		return nil, errors.NewDataError("candles", symbol, "no candles returned", errors.ErrDataNotFound)
	}

	return convertKlines(klines)
}

// Ticker fetches the 24h summary for symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (*models.Ticker, error) {
	stats, err := c.priceChangeStats(ctx, symbol)
	if err != nil {
		return nil, classify(err, "ticker", symbol)
	}
	if len(stats) == 0 {
		return nil, errors.NewDataError("ticker", symbol, "no ticker returned", errors.ErrDataNotFound)
	}
	t := convertTicker(stats[0])
	return &t, nil
}

// TopSymbols returns up to n USDT pairs ranked by 24h quote volume.
func (c *Client) TopSymbols(ctx context.Context, n int) ([]models.Ticker, error) {
	stats, err := c.priceChangeStats(ctx, "")
	if err != nil {
		return nil, classify(err, "ticker", "")
	}
	return rankSymbols(stats, n), nil
}

func (c *Client) priceChangeStats(ctx context.Context, symbol string) ([]*binance.PriceChangeStats, error) {
	return utils.RetryWithResult(ctx, c.retry, func() ([]*binance.PriceChangeStats, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		svc := c.api.NewListPriceChangeStatsService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		start := time.Now()
		res, err := svc.Do(ctx)
		logging.LogAPICall(c.logger, http.MethodGet, "/api/v3/ticker/24hr", time.Since(start), err)
		return res, err
	})
}

// convertKlines parses exchange klines into candles.
func convertKlines(klines []*binance.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(klines))
	for i, k := range klines {
		var c models.Candle
		fields := []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"open", k.Open, &c.Open},
			{"high", k.High, &c.High},
			{"low", k.Low, &c.Low},
			{"close", k.Close, &c.Close},
			{"volume", k.Volume, &c.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, errors.NewInputError(f.name, i, fmt.Sprintf("unparseable value %q", f.raw))
			}
			*f.dst = v
		}
		c.Timestamp = time.UnixMilli(k.OpenTime).UTC()
		candles = append(candles, c)
	}
	return candles, nil
}

func convertTicker(s *binance.PriceChangeStats) models.Ticker {
	return models.Ticker{
		Symbol:        s.Symbol,
		LastPrice:     parseFloat(s.LastPrice),
		PriceChange:   parseFloat(s.PriceChange),
		ChangePercent: parseFloat(s.PriceChangePercent),
		Volume:        parseFloat(s.Volume),
		QuoteVolume:   parseFloat(s.QuoteVolume),
		High:          parseFloat(s.HighPrice),
		Low:           parseFloat(s.LowPrice),
	}
}

// rankSymbols keeps USDT pairs that pass symbol validation, drops leveraged tokens and returns
// the n largest by quote volume.
func rankSymbols(stats []*binance.PriceChangeStats, n int) []models.Ticker {
	var tickers []models.Ticker
	for _, s := range stats {
		if !strings.HasSuffix(s.Symbol, "USDT") || isLeveraged(s.Symbol) {
			continue
		}
		if !symbolPattern.MatchString(s.Symbol) {
			continue
		}
		tickers = append(tickers, convertTicker(s))
	}

	sort.SliceStable(tickers, func(i, j int) bool {
		return tickers[i].QuoteVolume > tickers[j].QuoteVolume
	})
	if n > 0 && len(tickers) > n {
		tickers = tickers[:n]
	}
	return tickers
}

func isLeveraged(symbol string) bool {
	for _, suffix := range leveragedSuffixes {
		if strings.HasSuffix(symbol, suffix) {
			return true
		}
	}
	return false
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func isRetryable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeBadSymbol, codeBadInterval:
			return false
		}
	}
	return true
}

// classify maps exchange failures onto the domain error sentinels.
func classify(err error, dataType, symbol string) error {
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeBadSymbol:
			return errors.NewDataError(dataType, symbol, apiErr.Message, errors.ErrInvalidSymbol)
		case codeBadInterval:
			return errors.NewDataError(dataType, symbol, apiErr.Message, errors.ErrInvalidInterval)
		case codeTooManyRequests:
			return errors.NewDataError(dataType, symbol, apiErr.Message, errors.ErrRateLimited)
		}
		return errors.NewDataError(dataType, symbol, apiErr.Message, err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewDataError(dataType, symbol, err.Error(), errors.ErrConnectionFailed)
}
