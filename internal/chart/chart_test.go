package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"bullbear/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestTickFormat(t *testing.T) {
	const d = 24 * time.Hour
	tests := []struct {
		span time.Duration
		want string
	}{
		{span: 0, want: "2006-01-02"},
		{span: 90 * d, want: "2006-01-02"},
		{span: 91 * d, want: "2006-01"},
		{span: 365 * d, want: "2006-01"},
		{span: 730 * d, want: "2006-01"},
		{span: 731 * d, want: "2006"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TickFormat(tt.span), "span %s", tt.span)
	}
}

func TestRender(t *testing.T) {
	prices := []float64{100, 110, 120, 95, 90}
	obs := make([]domain.Observation, len(prices))
	for i, p := range prices {
		obs[i] = domain.Observation{Time: day(i + 1), Price: p}
	}
	segments := []domain.Segment{
		{
			Kind:     domain.Bull,
			Start:    domain.PricePoint{Time: day(1), Price: 100},
			End:      domain.PricePoint{Time: day(3), Price: 120},
			Crossing: &domain.PricePoint{Time: day(3), Price: 120},
		},
		{
			Kind:  domain.Bear,
			Start: domain.PricePoint{Time: day(3), Price: 120},
			End:   domain.PricePoint{Time: day(5), Price: 90},
		},
	}

	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := Render(dir, obs, segments, 0.20)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "bull_market_1.png"),
		filepath.Join(dir, "bear_market_2.png"),
	}, paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestChart(t *testing.T) {
	seg := domain.Segment{
		Kind:     domain.Bear,
		Start:    domain.PricePoint{Time: day(1), Price: 120},
		End:      domain.PricePoint{Time: day(2), Price: 90},
		Crossing: &domain.PricePoint{Time: day(2), Price: 90},
	}

	p, err := Chart(nil, seg, 4, 0.25)
	require.NoError(t, err)
	assert.Equal(t, "Bear Market 4: 2024-01-01 to 2024-01-02", p.Title.Text)
	assert.Equal(t, "Date", p.X.Label.Text)
	assert.Equal(t, "Price", p.Y.Label.Text)
	assert.Equal(t, plot.TimeTicks{Format: "2006-01-02"}, p.X.Tick.Marker)
}
