package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/cache"
	"github.com/sartorproj/pricecast/internal/logger"
	"github.com/sartorproj/pricecast/internal/metrics"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/timeseries"
)

type fakeSource struct {
	mu     sync.Mutex
	series map[string]*timeseries.Series
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{series: map[string]*timeseries.Series{}, calls: map[string]int{}}
}

func (f *fakeSource) add(t *testing.T, ticker string, n int, seed uint64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, n)
	vals := make([]float64, n)
	for i := range vals {
		ts[i] = start.AddDate(0, 0, i)
		vals[i] = 150 + 0.3*float64(i) + 0.1*rng.NormFloat64()
	}
	s, err := timeseries.NewWithTimestamps(ts, vals)
	require.NoError(t, err)
	f.series[ticker] = s
}

func (f *fakeSource) GetSeries(_ context.Context, ticker string, _ time.Time) (*timeseries.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	s, ok := f.series[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrUnknownTicker, ticker)
	}
	return s.Copy(), nil
}

func (f *fakeSource) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestForecast(t *testing.T) {
	src := newFakeSource()
	src.add(t, "AAPL", 200, 1)
	store := newStore(t)
	svc := New(src, nil, WithStore(store))

	report, err := svc.Forecast(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Ticker)
	require.Equal(t, forecast.Horizon, report.Forecast.Len())
	assert.InDelta(t, report.Smoothed.Last(), report.Forecast.Values[0], 5)
	assert.True(t, report.Accuracy.Available())
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, run.Outcome)
	assert.Equal(t, "forecast", run.Op)
	assert.Len(t, run.Points, forecast.Horizon)
	assert.Equal(t, report.Forecast.Timestamps[0], run.Points[0].Day)
}

func TestForecastUsesCache(t *testing.T) {
	src := newFakeSource()
	src.add(t, "MSFT", 150, 2)
	mc := cache.NewMemoryCache()
	defer mc.Close()
	reg := prometheus.NewRegistry()
	svc := New(src, nil, WithCache(mc, time.Hour), WithMetrics(metrics.New(reg)))

	first, err := svc.Forecast(context.Background(), "MSFT")
	require.NoError(t, err)
	second, err := svc.Forecast(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, 1, src.callCount("MSFT"))
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Forecast.Values, second.Forecast.Values)
	assert.True(t, first.Forecast.Timestamps[0].Equal(second.Forecast.Timestamps[0]))
	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, first.Summary.Trend, second.Summary.Trend)
}

func TestEvaluateShortHistory(t *testing.T) {
	src := newFakeSource()
	src.add(t, "NEW", 50, 3)
	svc := New(src, nil)

	acc, err := svc.Evaluate(context.Background(), "NEW")
	require.NoError(t, err)
	assert.False(t, acc.Available())
	assert.Equal(t, 0.0, acc.Float64())
}

func TestEvaluate(t *testing.T) {
	src := newFakeSource()
	src.add(t, "IBM", 120, 4)
	store := newStore(t)
	svc := New(src, nil, WithStore(store))

	acc, err := svc.Evaluate(context.Background(), "IBM")
	require.NoError(t, err)
	rmse, ok := acc.Value()
	require.True(t, ok)
	assert.GreaterOrEqual(t, rmse, 0.0)

	runs, err := store.RecentRuns(context.Background(), "IBM", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "evaluate", runs[0].Op)
	require.NotNil(t, runs[0].RMSE)
	assert.Equal(t, rmse, *runs[0].RMSE)
}

func TestForecastRecordsFailures(t *testing.T) {
	src := newFakeSource()
	src.add(t, "TINY", 5, 5)
	store := newStore(t)
	svc := New(src, nil, WithStore(store))

	_, err := svc.Forecast(context.Background(), "TINY")
	assert.ErrorIs(t, err, forecast.ErrInsufficientData)

	_, err = svc.Forecast(context.Background(), "NOPE")
	assert.ErrorIs(t, err, marketdata.ErrUnknownTicker)

	runs, err := store.RecentRuns(context.Background(), "TINY", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeInsufficientData, runs[0].Outcome)
	assert.NotEmpty(t, runs[0].Error)

	runs, err = store.RecentRuns(context.Background(), "NOPE", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeUnknownTicker, runs[0].Outcome)
}

func TestForecastRejectsInvalidTicker(t *testing.T) {
	src := newFakeSource()
	_, err := New(src, nil).Forecast(context.Background(), "../etc")
	assert.ErrorIs(t, err, marketdata.ErrInvalidTicker)
	assert.Zero(t, src.callCount("../ETC"))
}

func TestForecastMany(t *testing.T) {
	src := newFakeSource()
	src.add(t, "AAA", 150, 6)
	src.add(t, "BBB", 5, 7)
	src.add(t, "CCC", 130, 8)
	svc := New(src, nil, WithConcurrency(2))

	results, err := svc.ForecastMany(context.Background(), []string{"AAA", "BBB", "CCC", "DDD"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "AAA", results[0].Ticker)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, forecast.Horizon, results[0].Report.Forecast.Len())

	assert.ErrorIs(t, results[1].Err, forecast.ErrInsufficientData)
	assert.Nil(t, results[1].Report)

	assert.NoError(t, results[2].Err)
	assert.ErrorIs(t, results[3].Err, marketdata.ErrUnknownTicker)
}

func TestForecastManyMatchesSequential(t *testing.T) {
	src := newFakeSource()
	src.add(t, "AAA", 150, 6)
	src.add(t, "CCC", 130, 8)
	svc := New(src, nil, WithConcurrency(4))

	results, err := svc.ForecastMany(context.Background(), []string{"AAA", "CCC"})
	require.NoError(t, err)
	for _, r := range results {
		solo, err := New(src, nil).Forecast(context.Background(), r.Ticker)
		require.NoError(t, err)
		assert.Equal(t, solo.Forecast.Values, r.Report.Forecast.Values, r.Ticker)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("smooth: %w", timeseries.Insufficient("rolling mean", 7, 3)), OutcomeInsufficientData},
		{fmt.Errorf("scale: %w", forecast.ErrDegenerateScale), OutcomeDegenerate},
		{forecast.ErrDegenerateSeries, OutcomeDegenerate},
		{forecast.ErrNonConvergence, OutcomeNonConvergence},
		{forecast.ErrModelFit, OutcomeModelFit},
		{fmt.Errorf("%w: x", marketdata.ErrUnknownTicker), OutcomeUnknownTicker},
		{marketdata.ErrInvalidTicker, OutcomeInvalidTicker},
		{fmt.Errorf("%w: timeout", marketdata.ErrSource), OutcomeSourceError},
		{fmt.Errorf("%w: %w", marketdata.ErrSource, context.Canceled), OutcomeCanceled},
		{errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), fmt.Sprint(tt.err))
	}
}

func TestHistoryNormalizesTicker(t *testing.T) {
	src := newFakeSource()
	src.add(t, "AAPL", 120, 11)
	store := newStore(t)
	svc := New(src, nil, WithStore(store))

	report, err := svc.Forecast(context.Background(), "aapl")
	require.NoError(t, err)

	runs, err := svc.History(context.Background(), " aapl ", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "AAPL", runs[0].Ticker)
	assert.Equal(t, report.RunID, runs[0].ID)

	run, err := svc.Run(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, run.Points, forecast.Horizon)

	_, err = svc.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoryWithoutStore(t *testing.T) {
	svc := New(newFakeSource(), nil)

	_, err := svc.History(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = svc.Run(context.Background(), "id")
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = svc.History(context.Background(), "A/B", 5)
	assert.ErrorIs(t, err, marketdata.ErrInvalidTicker)
}

func TestInvalidate(t *testing.T) {
	src := newFakeSource()
	src.add(t, "MSFT", 150, 12)
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := New(src, nil, WithCache(mc, time.Hour))
	ctx := context.Background()

	removed, err := svc.Invalidate(ctx, "msft")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = svc.Forecast(ctx, "MSFT")
	require.NoError(t, err)
	removed, err = svc.Invalidate(ctx, "msft")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.Forecast(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount("MSFT"))
}

func TestRunCompleteLogsRMSE(t *testing.T) {
	src := newFakeSource()
	src.add(t, "IBM", 120, 13)
	var buf bytes.Buffer
	svc := New(src, nil, WithLogger(logger.NewWithWriter(&buf, zerolog.InfoLevel, "json", "")))

	_, err := svc.Forecast(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"run complete"`)
	assert.Contains(t, buf.String(), `"rmse":`)
}
