package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pricecast collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	backtestRMSE  *prometheus.GaugeVec
	cacheLookups  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	sourceFetches *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_runs_total",
				Help: "Pipeline runs by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		backtestRMSE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_backtest_rmse",
				Help: "Latest backtest RMSE on the standardized series",
			},
			[]string{"ticker"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_cache_lookups_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
		sourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_source_fetches_total",
				Help: "Market data fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
	}
	reg.MustRegister(
		r.runsTotal, r.runDuration, r.backtestRMSE, r.cacheLookups,
		r.httpRequests, r.httpDuration, r.sourceFetches,
	)
	return r
}

// ObserveRun records one pipeline run.
func (r *Recorder) ObserveRun(op, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(op, outcome).Inc()
	r.runDuration.WithLabelValues(op).Observe(took.Seconds())
}

// SetRMSE stores the latest backtest score of ticker.
func (r *Recorder) SetRMSE(ticker string, rmse float64) {
	if r == nil {
		return
	}
	r.backtestRMSE.WithLabelValues(ticker).Set(rmse)
}

// CacheLookup counts a cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// SourceFetch counts a market data request.
func (r *Recorder) SourceFetch(source string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.sourceFetches.WithLabelValues(source, outcome).Inc()
}

// ObserveHTTP records one request. Use the route template, not the raw path.
func (r *Recorder) ObserveHTTP(route, method, status string, took time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}
