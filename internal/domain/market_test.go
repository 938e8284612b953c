package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSegment_ChangePct(t *testing.T) {
	start := time.Date(2020, 2, 19, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 4)

	tests := []struct {
		name string
		seg  Segment
		want float64
	}{
		{
			name: "bull rise",
			seg:  Segment{Kind: Bull, Start: PricePoint{Time: start, Price: 100}, End: PricePoint{Time: end, Price: 150}},
			want: 50,
		},
		{
			name: "bear decline is positive",
			seg:  Segment{Kind: Bear, Start: PricePoint{Time: start, Price: 200}, End: PricePoint{Time: end, Price: 150}},
			want: 25,
		},
		{
			name: "open bull below its start",
			seg:  Segment{Kind: Bull, Start: PricePoint{Time: start, Price: 100}, End: PricePoint{Time: end, Price: 97}},
			want: -3,
		},
		{
			name: "zero start price",
			seg:  Segment{Kind: Bull, End: PricePoint{Time: end, Price: 1}},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.seg.ChangePct(), 1e-9)
		})
	}
}

func TestSegment_WindowHelpers(t *testing.T) {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	seg := Segment{
		Kind:  Bear,
		Start: PricePoint{Time: start, Price: 10},
		End:   PricePoint{Time: start.AddDate(0, 0, 10), Price: 7},
	}

	assert.Equal(t, 10*24*time.Hour, seg.Duration())
	assert.True(t, seg.Contains(start))
	assert.True(t, seg.Contains(start.AddDate(0, 0, 10)))
	assert.False(t, seg.Contains(start.AddDate(0, 0, -1)))
	assert.False(t, seg.Contains(start.AddDate(0, 0, 11)))
}

func TestSeries_Summary(t *testing.T) {
	d := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	s := &Series{Observations: []Observation{
		{Time: d, Price: 12.5},
		{Time: d.AddDate(0, 0, 1), Price: 9.75},
		{Time: d.AddDate(0, 0, 2), Price: 14},
	}}

	sum := s.Summary()
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, d, sum.First)
	assert.Equal(t, d.AddDate(0, 0, 2), sum.Last)
	assert.Equal(t, 9.75, sum.MinPrice)
	assert.Equal(t, 14.0, sum.MaxPrice)

	assert.Equal(t, SeriesSummary{}, (&Series{}).Summary())
}

func TestWindow(t *testing.T) {
	d := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{Time: d, Price: 1},
		{Time: d.AddDate(0, 0, 1), Price: 2},
		{Time: d.AddDate(0, 0, 2), Price: 3},
		{Time: d.AddDate(0, 0, 3), Price: 4},
	}
	got := Window(obs, d.AddDate(0, 0, 1), d.AddDate(0, 0, 2))
	assert.Equal(t, obs[1:3], got)
	assert.Empty(t, Window(obs, d.AddDate(1, 0, 0), d.AddDate(2, 0, 0)))
}
