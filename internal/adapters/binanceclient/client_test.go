package binanceclient

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

var dayMs = int64(24 * time.Hour / time.Millisecond)

// dailyKlines builds n consecutive daily klines starting at startMs.
func dailyKlines(startMs int64, n int, close float64) []*futures.Kline {
	out := make([]*futures.Kline, n)
	for i := 0; i < n; i++ {
		open := startMs + int64(i)*dayMs
		price := strconv.FormatFloat(close+float64(i), 'f', -1, 64)
		out[i] = &futures.Kline{
			OpenTime:  open,
			CloseTime: open + dayMs - 1,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "10",
		}
	}
	return out
}

func newTestClient(t *testing.T, fetch klinesFunc) (*Client, *mockLogger) {
	t.Helper()
	log := &mockLogger{}
	c, err := New(Config{
		Logger:               log,
		UseTestnet:           true,
		RequestsPerSecond:    1000,
		RetryInitialInterval: time.Millisecond,
		MaxRetryElapsed:      time.Second,
	})
	require.NoError(t, err)
	c.fetchKlines = fetch
	return c, log
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetKlinesRange_Paginates(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(10, 0, 0)

	var starts []int64
	fetch := func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
		assert.Equal(t, "ETHUSDT", symbol)
		assert.Equal(t, "1d", interval)
		assert.Equal(t, maxKlinesPerRequest, limit)
		starts = append(starts, startMs)
		if len(starts) == 1 {
			return dailyKlines(startMs, maxKlinesPerRequest, 100), nil
		}
		return dailyKlines(startMs, 3, 2000), nil
	}
	c, _ := newTestClient(t, fetch)

	klines, err := c.GetKlinesRange(context.Background(), "ETHUSDT", "1d", start, end)
	require.NoError(t, err)
	require.Len(t, klines, maxKlinesPerRequest+3)
	require.Len(t, starts, 2)
	assert.Equal(t, start.UnixMilli(), starts[0])
	assert.Equal(t, start.UnixMilli()+int64(maxKlinesPerRequest)*dayMs, starts[1], "second page starts right after the first")

	assert.Equal(t, start, klines[0].OpenTime)
	assert.Equal(t, "ETHUSDT", klines[0].Symbol)
	assert.Equal(t, 100.0, klines[0].Close)
	assert.Equal(t, 2002.0, klines[len(klines)-1].Close)
}

func TestGetKlinesRange_RetriesRateLimit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	fetch := func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
		calls++
		if calls < 3 {
			return nil, &common.APIError{Code: -1003, Message: "Too many requests"}
		}
		return dailyKlines(startMs, 2, 50), nil
	}
	c, log := newTestClient(t, fetch)

	klines, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1d", start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, klines, 2)
	assert.Equal(t, 3, calls)
	assert.Len(t, log.warnMsgs, 2)
}

func TestGetKlinesRange_PermanentError(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	fetch := func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
		calls++
		return nil, &common.APIError{Code: -1121, Message: "Invalid symbol."}
	}
	c, _ := newTestClient(t, fetch)

	_, err := c.GetKlinesRange(context.Background(), "NOPE", "1d", start, start.AddDate(0, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.Equal(t, 1, calls, "request errors must not be retried")
}

func TestGetKlinesRange_InvalidRange(t *testing.T) {
	c, _ := newTestClient(t, nil)
	now := time.Now()
	_, err := c.GetKlinesRange(context.Background(), "ETHUSDT", "1d", now, now)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestGetKlinesRange_BadPayload(t *testing.T) {
	fetch := func(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
		k := dailyKlines(startMs, 1, 10)
		k[0].Close = "abc"
		return k, nil
	}
	c, _ := newTestClient(t, fetch)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.GetKlinesRange(context.Background(), "ETHUSDT", "1d", start, start.AddDate(0, 0, 5))
	assert.ErrorIs(t, err, ports.ErrUnknown)
}

func TestHandleError(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limit", err: &common.APIError{Code: -1003}, want: ports.ErrRateLimited},
		{name: "recv window", err: &common.APIError{Code: -1021}, want: ports.ErrTimeout},
		{name: "bad signature", err: &common.APIError{Code: -1022}, want: ports.ErrAuthenticationFailed},
		{name: "bad api key", err: &common.APIError{Code: -2015}, want: ports.ErrAuthenticationFailed},
		{name: "invalid interval", err: &common.APIError{Code: -1120}, want: ports.ErrInvalidRequest},
		{name: "unmapped code", err: &common.APIError{Code: -9999}, want: ports.ErrUnknown},
		{name: "deadline", err: context.DeadlineExceeded, want: ports.ErrTimeout},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: ports.ErrExchangeUnavailable},
		{name: "other", err: errors.New("weird"), want: ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(ctx, tt.err, "op")
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, c.handleError(ctx, nil, "op"))
}

type mockKlineClient struct {
	klines []*domain.Kline
	err    error
}

func (m *mockKlineClient) Ping(ctx context.Context) error { return nil }

func (m *mockKlineClient) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	return m.klines, m.err
}

func TestSeriesSource_LoadSeries(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &SeriesSource{
		Client: &mockKlineClient{klines: []*domain.Kline{
			{OpenTime: d, CloseTime: d.Add(24*time.Hour - time.Millisecond), Close: 3000},
			{OpenTime: d.AddDate(0, 0, 1), Close: 0},
			nil,
			{OpenTime: d.AddDate(0, 0, 2), Close: 3100},
		}},
		Symbol:   "ETHUSDT",
		Interval: "1d",
	}
	assert.Equal(t, "binance", src.Name())

	series, err := src.LoadSeries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", series.Symbol)
	assert.Equal(t, "binance", series.Source)
	assert.Equal(t, []domain.Observation{
		{Time: d, Price: 3000},
		{Time: d.AddDate(0, 0, 2), Price: 3100},
	}, series.Observations)

	failing := &SeriesSource{Client: &mockKlineClient{err: ports.ErrRateLimited}, Symbol: "ETHUSDT", Interval: "1d"}
	_, err = failing.LoadSeries(context.Background())
	assert.ErrorIs(t, err, ports.ErrRateLimited)
}
