package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxKlinesPerRequest is the page size accepted by the klines endpoint.
	maxKlinesPerRequest = 1500
)

// klinesFunc fetches one page of klines.
type klinesFunc func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error)

// Client implements the ports.KlineClient interface using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	fetchKlines   klinesFunc
	limiter       *rate.Limiter
	logger        ports.Logger
	retryInitial  time.Duration
	retryMaxTotal time.Duration
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	RequestsPerSecond    float64       // Page requests per second (default 5)
	RetryInitialInterval time.Duration // First backoff delay after a rate limit (default 500ms)
	MaxRetryElapsed      time.Duration // Give up retrying a page after this long (default 30s)
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Klines are public market data; keys are optional.
		cfg.Logger.Debug(context.Background(), "Binance client created without API keys, using public endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	retryInitial := cfg.RetryInitialInterval
	if retryInitial <= 0 {
		retryInitial = 500 * time.Millisecond
	}
	retryMaxTotal := cfg.MaxRetryElapsed
	if retryMaxTotal <= 0 {
		retryMaxTotal = 30 * time.Second
	}

	c := &Client{
		futuresClient: client,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		logger:        cfg.Logger,
		retryInitial:  retryInitial,
		retryMaxTotal: retryMaxTotal,
	}
	c.fetchKlines = func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
		return c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startMs).
			EndTime(endMs).
			Limit(limit).
			Do(ctx)
	}
	return c, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch {
		case apiErr.Code == -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case apiErr.Code == -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case apiErr.Code == -1022, apiErr.Code == -2014, apiErr.Code == -2015: // Signature / API key problems
			mappedErr = ports.ErrAuthenticationFailed
		case apiErr.Code <= -1100 && apiErr.Code >= -1199: // Parameter/Request format errors, e.g. -1121 invalid symbol
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w", operation, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetKlinesRange fetches all klines for a symbol/interval between start and end time.
// Pages are paced by the rate limiter; a page rejected for rate limiting or
// an unreachable exchange is retried with exponential backoff.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	op := "GetKlinesRange"
	if !start.Before(end) {
		return nil, fmt.Errorf("%s: %w: start %s is not before end %s", op, ports.ErrInvalidRequest, start, end)
	}

	var allKlines []*domain.Kline
	from := start

	for {
		page, err := c.fetchPage(ctx, op, symbol, interval, from, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, bk := range page {
			dk, err := translateBinanceKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			allKlines = append(allKlines, dk)
		}
		last := page[len(page)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(page) < maxKlinesPerRequest {
			break
		}
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(allKlines)})
	return allKlines, nil
}

func (c *Client) fetchPage(ctx context.Context, op, symbol, interval string, from, end time.Time) ([]*futures.Kline, error) {
	var page []*futures.Kline
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		klines, err := c.fetchKlines(ctx, symbol, interval, from.UnixMilli(), end.UnixMilli(), maxKlinesPerRequest)
		if err != nil {
			mapped := c.handleError(ctx, err, op)
			if errors.Is(mapped, ports.ErrRateLimited) || errors.Is(mapped, ports.ErrExchangeUnavailable) {
				return mapped
			}
			return backoff.Permanent(mapped)
		}
		page = klines
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxElapsedTime = c.retryMaxTotal

	notify := func(err error, wait time.Duration) {
		c.logger.Warn(ctx, "Retrying kline request", map[string]interface{}{"symbol": symbol, "wait": wait.String(), "error": err.Error()})
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return page, nil
}

// --- Translation Helpers ---

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol, // Use passed symbol as it's not in futures.Kline
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
