package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/cache"
	"github.com/sartorproj/pricecast/internal/logger"
	"github.com/sartorproj/pricecast/internal/metrics"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/timeseries"
)

const (
	opEvaluate = "evaluate"
	opForecast = "forecast"
)

// RunStore persists run history.
type RunStore interface {
	SaveRun(ctx context.Context, run storage.Run) error
	RecentRuns(ctx context.Context, ticker string, limit int) ([]storage.Run, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
}

// ErrNoHistory is returned by history queries when no store is configured.
var ErrNoHistory = errors.New("run history disabled")

// Service fetches prices and runs the forecasting pipeline per ticker.
// Every call builds its own series and model, so calls may run concurrently.
type Service struct {
	source      marketdata.Source
	sourceName  string
	pipeline    *forecast.Pipeline
	cache       cache.Service
	ttl         time.Duration
	store       RunStore
	metrics     *metrics.Recorder
	log         *logger.Logger
	start       time.Time
	concurrency int
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithStore(store RunStore) Option {
	return func(s *Service) { s.store = store }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithStart sets the first date of history requested from the source.
func WithStart(start time.Time) Option {
	return func(s *Service) { s.start = start }
}

// WithConcurrency bounds ForecastMany.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSourceName labels source metrics.
func WithSourceName(name string) Option {
	return func(s *Service) { s.sourceName = name }
}

// DefaultStart is the first day of history fetched when none is configured.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func New(source marketdata.Source, pipeline *forecast.Pipeline, opts ...Option) *Service {
	s := &Service{
		source:      source,
		sourceName:  "source",
		pipeline:    pipeline,
		cache:       cache.Nop{},
		log:         logger.Nop(),
		start:       DefaultStart,
		concurrency: 4,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = forecast.NewPipeline(forecast.WithClock(s.now))
	}
	return s
}

// Evaluate returns the backtest accuracy for ticker.
func (s *Service) Evaluate(ctx context.Context, ticker string) (forecast.Accuracy, error) {
	bt, err := s.Backtest(ctx, ticker)
	if err != nil {
		return forecast.Unavailable(), err
	}
	return bt.Accuracy, nil
}

// Backtest runs the evaluation half of the pipeline for ticker.
func (s *Service) Backtest(ctx context.Context, ticker string) (*forecast.Backtest, error) {
	ticker, err := marketdata.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var cached forecast.Backtest
	if s.lookup(ctx, s.key(opEvaluate, ticker), &cached) {
		return &cached, nil
	}

	started := s.now()
	id := s.newID()
	bt, err := s.backtest(ctx, ticker)
	run := storage.Run{ID: id, Ticker: ticker, Op: opEvaluate, StartedAt: started}
	if bt != nil {
		run.Observations = bt.Observations
		run.Differencing = bt.Differencing
		run.ADFPValue = bt.ADFPValue
		run.RMSE = accuracyPtr(bt.Accuracy)
		run.PriceRMSE = accuracyPtr(bt.PriceRMSE)
	}
	s.finish(ctx, &run, err)
	if err != nil {
		return nil, err
	}

	if rmse, ok := bt.Accuracy.Value(); ok {
		s.metrics.SetRMSE(ticker, rmse)
	}
	s.remember(ctx, s.key(opEvaluate, ticker), bt)
	return bt, nil
}

func (s *Service) backtest(ctx context.Context, ticker string) (*forecast.Backtest, error) {
	prices, err := s.fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Backtest(ticker, prices)
}

// Forecast runs the full pipeline for ticker. The report's forecast holds
// Horizon prices in the units of the source.
func (s *Service) Forecast(ctx context.Context, ticker string) (*forecast.Report, error) {
	ticker, err := marketdata.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var cached forecast.Report
	if s.lookup(ctx, s.key(opForecast, ticker), &cached) {
		return &cached, nil
	}

	started := s.now()
	id := s.newID()
	report, err := s.forecast(ctx, ticker)
	run := storage.Run{ID: id, Ticker: ticker, Op: opForecast, StartedAt: started}
	if report != nil {
		report.RunID = id
		run.Observations = report.Observations
		run.Differencing = report.Differencing
		run.ADFPValue = report.ADFPValue
		run.RMSE = accuracyPtr(report.Accuracy)
		run.PriceRMSE = accuracyPtr(report.PriceRMSE)
		run.LastPrice = report.Summary.LastPrice
		run.PredictedPrice = report.Summary.PredictedPrice
		for i, day := range report.Forecast.Timestamps {
			run.Points = append(run.Points, storage.Point{Day: day, Price: report.Forecast.Values[i]})
		}
	}
	s.finish(ctx, &run, err)
	if err != nil {
		return nil, err
	}

	if rmse, ok := report.Accuracy.Value(); ok {
		s.metrics.SetRMSE(ticker, rmse)
	}
	s.remember(ctx, s.key(opForecast, ticker), report)
	return report, nil
}

func (s *Service) forecast(ctx context.Context, ticker string) (*forecast.Report, error) {
	prices, err := s.fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Run(ticker, prices)
}

// Result is the outcome for one ticker of ForecastMany.
type Result struct {
	Ticker string
	Report *forecast.Report
	Err    error
}

// ForecastMany forecasts tickers concurrently. Per-ticker failures are
// reported in the results, in input order; only ctx cancellation fails the
// call.
func (s *Service) ForecastMany(ctx context.Context, tickers []string) ([]Result, error) {
	s.log.Debug("forecasting batch", logger.Strings("tickers", tickers), logger.Int("concurrency", s.concurrency))
	results := make([]Result, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.concurrency, 1))

	for i, ticker := range tickers {
		g.Go(func() error {
			report, err := s.Forecast(gctx, ticker)
			results[i] = Result{Ticker: ticker, Report: report, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// History returns the latest runs recorded for ticker, newest first.
func (s *Service) History(ctx context.Context, ticker string, limit int) ([]storage.Run, error) {
	ticker, err := marketdata.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrNoHistory
	}
	return s.store.RecentRuns(ctx, ticker, limit)
}

// Run loads one recorded run by id.
func (s *Service) Run(ctx context.Context, id string) (*storage.Run, error) {
	if s.store == nil {
		return nil, ErrNoHistory
	}
	return s.store.GetRun(ctx, id)
}

// Invalidate drops the cached evaluation and forecast of ticker. It reports
// whether anything was cached.
func (s *Service) Invalidate(ctx context.Context, ticker string) (bool, error) {
	ticker, err := marketdata.NormalizeTicker(ticker)
	if err != nil {
		return false, err
	}
	keys := []string{s.key(opEvaluate, ticker), s.key(opForecast, ticker)}
	found, err := s.cache.Exists(ctx, keys...)
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	if !found {
		s.log.Debug("cache invalidated", logger.String("ticker", ticker), logger.Bool("found", false))
		return false, nil
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return false, fmt.Errorf("cache delete: %w", err)
	}
	s.log.Info("cache invalidated", logger.String("ticker", ticker), logger.Bool("found", true))
	return true, nil
}

func (s *Service) fetch(ctx context.Context, ticker string) (*timeseries.Series, error) {
	prices, err := s.source.GetSeries(ctx, ticker, s.start)
	s.metrics.SourceFetch(s.sourceName, err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	return prices, nil
}

func (s *Service) finish(ctx context.Context, run *storage.Run, err error) {
	run.Duration = s.now().Sub(run.StartedAt)
	run.Outcome = Outcome(err)
	if err != nil {
		run.Error = err.Error()
	}
	s.metrics.ObserveRun(run.Op, run.Outcome, run.Duration)

	fields := []logger.Field{
		logger.String("run_id", run.ID),
		logger.String("ticker", run.Ticker),
		logger.String("op", run.Op),
		logger.String("outcome", run.Outcome),
		logger.Duration("took", run.Duration),
	}
	switch {
	case err == nil:
		fields = append(fields, logger.Int("d", run.Differencing))
		if run.RMSE != nil {
			fields = append(fields, logger.Float("rmse", *run.RMSE))
		}
		s.log.Info("run complete", fields...)
	case errors.Is(err, context.Canceled):
		s.log.Debug("run canceled", fields...)
	default:
		s.log.Warn("run failed", append(fields, logger.Error(err))...)
	}

	if s.store == nil || errors.Is(err, context.Canceled) {
		return
	}
	if serr := s.store.SaveRun(context.WithoutCancel(ctx), *run); serr != nil {
		s.log.Error("save run", logger.String("run_id", run.ID), logger.Error(serr))
	}
}

func (s *Service) key(op, ticker string) string {
	return fmt.Sprintf("%s:%s:%s", op, ticker, s.start.Format(time.DateOnly))
}

func (s *Service) lookup(ctx context.Context, key string, dest any) bool {
	err := s.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("cache get", logger.String("key", key), logger.Error(err))
	}
	if _, nop := s.cache.(cache.Nop); !nop {
		s.metrics.CacheLookup(err == nil)
	}
	return err == nil
}

func (s *Service) remember(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.Warn("cache set", logger.String("key", key), logger.Error(err))
	}
}

func accuracyPtr(a forecast.Accuracy) *float64 {
	if v, ok := a.Value(); ok {
		return &v
	}
	return nil
}
