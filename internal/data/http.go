package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/quantgrid/internal/models"
)

// HTTPProviderConfig holds configuration for the HTTP candle provider
type HTTPProviderConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second
}

// DefaultHTTPProviderConfig returns recommended defaults
func DefaultHTTPProviderConfig(baseURL string) HTTPProviderConfig {
	return HTTPProviderConfig{
		BaseURL:      baseURL,
		Timeout:      30 * time.Second,
		MaxRetries:   5,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 10 * time.Second,
		RateLimit:    10.0,
	}
}

// HTTPProvider fetches candles from a REST endpoint with retries and rate
// limiting. The endpoint is expected to answer
// GET <base>/ohlcv?symbol=&timeframe=&start=&end= with a JSON array of bars.
type HTTPProvider struct {
	cfg     HTTPProviderConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// candlePayload mirrors the wire format; prices arrive as strings to avoid
// float precision loss, so they are parsed through decimal
type candlePayload struct {
	Time   int64  `json:"time"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// NewHTTPProvider creates a rate-limited, retrying HTTP candle provider
func NewHTTPProvider(cfg HTTPProviderConfig, logger *logrus.Logger) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10.0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil
	retryClient.CheckRetry = candleRetryPolicy()

	return &HTTPProvider{
		cfg:     cfg,
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger,
	}, nil
}

// Name returns the provider name
func (p *HTTPProvider) Name() string { return "http" }

// GetOHLCV fetches candles for the half-open interval [start, end)
func (p *HTTPProvider) GetOHLCV(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) (models.Series, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint, err := p.buildURL(symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req = req.WithContext(ctx)
	if p.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no data for %s %s", symbol, timeframe), ErrSymbolNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, NewProviderError(p.Name(), ErrCodeServerError, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload []candlePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to decode response", err)
	}

	series, err := normalizeCandles(payload, symbol)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to normalize candles", err)
	}

	p.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"timeframe": timeframe,
		"candles":   len(series),
	}).Debug("Fetched candles over HTTP")
	return series.Slice(start, end), nil
}

func (p *HTTPProvider) buildURL(symbol string, timeframe models.Timeframe, start, end time.Time) (string, error) {
	base, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base = base.JoinPath("ohlcv")
	q := base.Query()
	q.Set("symbol", symbol)
	q.Set("timeframe", string(timeframe))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// normalizeCandles converts wire bars into the internal candle type
func normalizeCandles(payload []candlePayload, symbol string) (models.Series, error) {
	series := make(models.Series, 0, len(payload))
	for i, bar := range payload {
		open, err := decimal.NewFromString(bar.Open)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid open %q", i, bar.Open)
		}
		high, err := decimal.NewFromString(bar.High)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid high %q", i, bar.High)
		}
		low, err := decimal.NewFromString(bar.Low)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid low %q", i, bar.Low)
		}
		closePrice, err := decimal.NewFromString(bar.Close)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid close %q", i, bar.Close)
		}
		volume, err := decimal.NewFromString(bar.Volume)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid volume %q", i, bar.Volume)
		}

		series = append(series, models.Candle{
			Symbol: symbol,
			Time:   time.Unix(bar.Time, 0).UTC(),
			Open:   open.InexactFloat64(),
			High:   high.InexactFloat64(),
			Low:    low.InexactFloat64(),
			Close:  closePrice.InexactFloat64(),
			Volume: volume.InexactFloat64(),
		})
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// candleRetryPolicy defines which HTTP responses should trigger a retry
func candleRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			// Retry on network errors
			return true, err
		}

		// Retry on rate limit and server errors
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}
}
