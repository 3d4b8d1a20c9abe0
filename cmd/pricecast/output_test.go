package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/cache"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/service"
	"github.com/sartorproj/pricecast/timeseries"
)

func sampleReport(t *testing.T) *forecast.Report {
	t.Helper()
	start := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	ts := forecast.ForecastDates(start, 3)
	series, err := timeseries.NewWithTimestamps(ts, []float64{101.5, 102.25, 103})
	require.NoError(t, err)

	r := &forecast.Report{
		Ticker:       "AAPL",
		Differencing: 1,
		ADFPValue:    0.012,
		Accuracy:     forecast.Score(0.42),
		PriceRMSE:    forecast.Score(1.3),
		Forecast:     series,
		ModelOrder:   "ARIMA(30,1,1)",
	}
	r.Summary = forecast.Summarize(r)
	return r
}

func TestSplitTickers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, splitTickers(" AAPL, ,MSFT,"))
	assert.Empty(t, splitTickers(""))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, sampleReport(t)))

	out := buf.String()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "ARIMA(30,1,1)")
	assert.Contains(t, out, "2024-12-31")
	assert.Contains(t, out, "2025-01-02")
	assert.Contains(t, out, "103.000")
	assert.Contains(t, out, "Trend: up")
	assert.Contains(t, out, "Confidence: 99.6%")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	results := []service.Result{
		{Ticker: "AAPL", Report: sampleReport(t)},
		{Ticker: "NOPE", Err: errors.New("unknown ticker")},
	}
	require.NoError(t, writeJSON(&buf, results))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "AAPL", decoded[0]["ticker"])
	assert.NotNil(t, decoded[0]["report"])
	assert.Equal(t, "unknown ticker", decoded[1]["error"])
	assert.NotContains(t, decoded[1], "report")
}

func TestWriteHistory(t *testing.T) {
	rmse := 0.5
	runs := []storage.Run{
		{Op: "forecast", Outcome: "ok", StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Differencing: 1, RMSE: &rmse, PredictedPrice: 110, Duration: 2 * time.Second},
		{Op: "evaluate", Outcome: "insufficient_data", StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, "AAPL", runs))

	out := buf.String()
	assert.Contains(t, out, "Recent runs for AAPL")
	assert.Contains(t, out, "2025-01-02 03:04:05")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "insufficient_data")
}

type staticSource map[string]*timeseries.Series

func (s staticSource) GetSeries(_ context.Context, ticker string, _ time.Time) (*timeseries.Series, error) {
	series, ok := s[ticker]
	if !ok {
		return nil, marketdata.ErrUnknownTicker
	}
	return series.Copy(), nil
}

func TestRunOnceHistoryForLowerCaseTicker(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewPCG(1, 2))
	ts := make([]time.Time, 200)
	values := make([]float64, 200)
	for i := range values {
		ts[i] = start.AddDate(0, 0, i)
		values[i] = 150 + 0.3*float64(i) + 0.1*rng.NormFloat64()
	}
	series, err := timeseries.NewWithTimestamps(ts, values)
	require.NoError(t, err)

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	a := &app{
		svc:   service.New(staticSource{"AAPL": series}, nil, service.WithStore(store)),
		store: store,
		cache: cache.Nop{},
	}
	defer a.close()

	var buf bytes.Buffer
	require.NoError(t, runOnce(context.Background(), &buf, a, []string{"aapl"}, "table", "", 5))

	out := buf.String()
	assert.Contains(t, out, "Recent runs for AAPL")
	assert.Contains(t, out, "forecast")
	assert.Contains(t, out, "ok")

	runs, err := store.RecentRuns(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
