package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/cache"
	"github.com/sartorproj/pricecast/internal/config"
	"github.com/sartorproj/pricecast/internal/logger"
	"github.com/sartorproj/pricecast/internal/metrics"
	"github.com/sartorproj/pricecast/internal/server"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/service"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file (\"\" for built-in defaults)")
	serve := flag.Bool("serve", false, "start the HTTP API instead of a one-shot run")
	tickers := flag.String("tickers", "", "comma-separated tickers for a one-shot run, e.g. AAPL,MSFT")
	format := flag.String("format", "table", "one-shot output: table|json")
	csvDir := flag.String("csv", "", "also write <dir>/<TICKER>_forecast.csv")
	history := flag.Int("history", 0, "print the last N stored runs per ticker")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", logger.Error(err))
		os.Exit(1)
	}
	defer app.close()

	if *serve {
		if err := runServer(ctx, cfg, log, app); err != nil {
			log.Error("server exited with error", logger.Error(err))
			os.Exit(1)
		}
		return
	}

	list := splitTickers(*tickers)
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no tickers given; use -tickers AAPL,MSFT or -serve")
		os.Exit(2)
	}

	if err := runOnce(ctx, os.Stdout, app, list, *format, *csvDir, *history); err != nil {
		log.Error("run failed", logger.Error(err))
		os.Exit(1)
	}
}

type app struct {
	svc      *service.Service
	store    *storage.SQLiteStorage
	cache    cache.Service
	recorder *metrics.Recorder
	gatherer prometheus.Gatherer
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.New(reg)
	a.gatherer = reg

	var source marketdata.Source
	switch cfg.Source.Kind {
	case "csv":
		source = marketdata.NewCSVSource(cfg.Source.Dir)
	default:
		source = marketdata.NewYahooSource(cfg.Source.BaseURL,
			marketdata.WithRate(cfg.Source.RatePerS, 2),
			marketdata.WithHTTPClient(&http.Client{Timeout: cfg.Source.Timeout}),
			marketdata.WithYahooLogger(log.Zerolog()),
		)
	}

	switch cfg.Cache.Kind {
	case "redis":
		rc, err := cache.NewRedisCache(ctx,
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			cache.WithRedisDialTimeout(cfg.Cache.Redis.DialTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		a.cache = rc
	case "memory":
		a.cache = cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			cache.WithMemoryCleanup(cfg.Cache.Cleanup),
		)
	default:
		a.cache = cache.Nop{}
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store

	pipeline := forecast.NewPipeline(
		forecast.WithLogger(log.Zerolog()),
		forecast.WithMaxDifferencing(cfg.Forecast.MaxDifferencing),
	)
	a.svc = service.New(source, pipeline,
		service.WithCache(a.cache, cfg.Cache.TTL),
		service.WithStore(store),
		service.WithMetrics(a.recorder),
		service.WithLogger(log),
		service.WithStart(cfg.Source.StartDate()),
		service.WithConcurrency(cfg.Forecast.Concurrency),
		service.WithSourceName(cfg.Source.Kind),
	)

	log.Info("pricecast ready",
		logger.String("source", cfg.Source.Kind),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("storage", cfg.Storage.DSN),
		logger.String("start", cfg.Source.Start),
	)
	return a, nil
}

func runServer(ctx context.Context, cfg *config.Config, log *logger.Logger, a *app) error {
	opts := []server.ServerOption{
		server.WithHost(cfg.Server.Host),
		server.WithPort(cfg.Server.Port),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		server.WithLogger(log),
		server.WithMetrics(a.recorder, a.gatherer, cfg.Metrics.Path),
	}
	if cfg.Metrics.Disabled {
		opts = append(opts, server.WithoutMetricsEndpoint())
	}

	srv := server.New(server.NewHandler(a.svc, log), opts...)
	srv.Start()
	<-ctx.Done()
	return srv.Stop(context.WithoutCancel(ctx))
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
