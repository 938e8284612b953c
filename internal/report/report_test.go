package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"bullbear/internal/analytics"
	"bullbear/internal/domain"
	"bullbear/internal/ports"
	"bullbear/internal/sweep"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func fixture() ([]domain.Observation, []domain.Segment) {
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
			Kind:     domain.Bear,
			Start:    domain.PricePoint{Time: day(3), Price: 120},
			End:      domain.PricePoint{Time: day(5), Price: 90},
			Crossing: &domain.PricePoint{Time: day(4), Price: 95},
		},
	}
	return obs, segments
}

const wantMarkets = `Identified Bull and Bear Markets:
Bull Market 1: 2024-01-01 to 2024-01-03 (Start: 100.00, End: 120.00, Change: 20.00%)

Debug info for Bull Market 1:
Start date: 2024-01-01 00:00:00, End date: 2024-01-03 00:00:00
Start price: 100.00, End price: 120.00
20% Threshold date: 2024-01-03
20% Threshold price: 120.00
Min price in period: 100.00
Max price in period: 120.00
Percentage change: 20.00%

Bear Market 2: 2024-01-03 to 2024-01-05 (Start: 120.00, End: 90.00, Change: 25.00%)

Debug info for Bear Market 2:
Start date: 2024-01-03 00:00:00, End date: 2024-01-05 00:00:00
Start price: 120.00, End price: 90.00
20% Threshold date: 2024-01-04
20% Threshold price: 95.00
Min price in period: 90.00
Max price in period: 120.00
Percentage change: 25.00%

`

func TestWriteMarkets(t *testing.T) {
	obs, segments := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteMarkets(&buf, obs, segments, 0.20))
	assert.Equal(t, wantMarkets, buf.String())
}

func TestWriteMarkets_WithoutCrossing(t *testing.T) {
	obs, segments := fixture()
	segments[0].Crossing = nil

	var buf bytes.Buffer
	require.NoError(t, WriteMarkets(&buf, obs, segments[:1], 0.15))
	assert.Contains(t, buf.String(), "15% Threshold date: N/A\n")
	assert.Contains(t, buf.String(), "15% Threshold price: N/A\n")
}

func TestWriteMarkets_NoSegments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkets(&buf, nil, nil, 0.20))
	assert.Equal(t, "Identified Bull and Bear Markets:\n", buf.String())
}

func TestSaveMarkets(t *testing.T) {
	obs, segments := fixture()
	path := filepath.Join(t.TempDir(), "out", "results.txt")

	require.NoError(t, SaveMarkets(path, obs, segments, 0.20))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wantMarkets, string(content))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, domain.SeriesSummary{
		Rows: 5, First: day(1), Last: day(5), MinPrice: 90, MaxPrice: 120.456,
	})
	require.NoError(t, err)
	assert.Equal(t, "Data summary:\n"+
		"Date range: 2024-01-01 00:00:00 to 2024-01-05 00:00:00\n"+
		"Price range: 90.00 to 120.46\n"+
		"Number of rows: 5\n", buf.String())
}

func TestThresholdLabel(t *testing.T) {
	assert.Equal(t, "20%", ThresholdLabel(0.20))
	assert.Equal(t, "15%", ThresholdLabel(0.15))
	assert.Equal(t, "7.5%", ThresholdLabel(0.075))
}

func TestWriteStats(t *testing.T) {
	_, segments := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, analytics.AnalyzeCycles(segments)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Cycle statistics:\n"))
	assert.Contains(t, out, "Bull markets           1\n")
	assert.Contains(t, out, "Average bear change    25.00%\n")
	assert.Contains(t, out, "Time in bull markets   50.0%\n")
	assert.Contains(t, out, "Longest market         Bull 2024-01-01 to 2024-01-03 (2.0 days)\n")
}

func TestWriteSweep(t *testing.T) {
	results := []sweep.Result{
		{Threshold: 0.1, Segments: 5, Stats: &analytics.CycleStats{Segments: 5, BullMarkets: 3, BearMarkets: 2}},
		{Threshold: 0.5, Segments: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSweep(&buf, results))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Threshold")
	assert.Equal(t, []string{"10%", "5", "3", "2", "0.00", "0.00", "0.0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"50%", "0", "0", "0", "0.00", "0.00", "0.0"}, strings.Fields(lines[2]))
}

func sampleRun() *domain.AnalysisRun {
	_, segments := fixture()
	segments[0].Crossing = nil
	return &domain.AnalysisRun{
		ID:           "0b6c2f0e-4a52-4b7e-9d0c-6d1e0f3a9b11",
		Symbol:       "SE0000744195",
		Source:       "csv",
		Threshold:    0.2,
		Observations: 5,
		CreatedAt:    day(6),
		Segments:     segments,
	}
}

func TestExport_JSON(t *testing.T) {
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, run, ""))
	assert.Contains(t, buf.String(), `"createdAt": "2024-01-06T00:00:00Z"`)
	assert.NotContains(t, buf.String(), `"crossing": null`)

	var decoded domain.AnalysisRun
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, run.ID, decoded.ID)
	require.Len(t, decoded.Segments, 2)
	assert.Nil(t, decoded.Segments[0].Crossing)
	require.NotNil(t, decoded.Segments[1].Crossing)
	assert.Equal(t, 95.0, decoded.Segments[1].Crossing.Price)
}

func TestExport_Msgpack(t *testing.T) {
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, run, "MSGPACK"))

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, run.Symbol, decoded["symbol"])
	assert.Contains(t, decoded, "createdAt")
	segments, ok := decoded["segments"].([]interface{})
	require.True(t, ok)
	assert.Len(t, segments, 2)
}

func TestExport_UnsupportedFormat(t *testing.T) {
	err := Export(&bytes.Buffer{}, sampleRun(), "xml")
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "run.json")
	require.NoError(t, ExportFile(path, sampleRun(), FormatJSON))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"symbol": "SE0000744195"`)

	bad := filepath.Join(t.TempDir(), "run.xml")
	assert.Error(t, ExportFile(bad, sampleRun(), "xml"))
	_, statErr := os.Stat(bad)
	assert.True(t, os.IsNotExist(statErr))
}
