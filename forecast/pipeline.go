package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/pricecast/arima"
	"github.com/sartorproj/pricecast/scaler"
	"github.com/sartorproj/pricecast/stats"
	"github.com/sartorproj/pricecast/timeseries"
)

// Report is the outcome of one pipeline run. Forecast values are in price
// units; Accuracy is the backtest RMSE on the z-scored series.
type Report struct {
	RunID        string             `json:"run_id,omitempty"`
	Ticker       string             `json:"ticker"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Observations int                `json:"observations"`
	Smoothed     *timeseries.Series `json:"smoothed"`
	Differencing int                `json:"differencing_order"`
	ADFPValue    float64            `json:"adf_p_value"`
	Scaler       scaler.State       `json:"scaler"`
	Accuracy     Accuracy           `json:"rmse"`
	PriceRMSE    Accuracy           `json:"price_rmse"`
	Forecast     *timeseries.Series `json:"forecast"`
	ModelOrder   string             `json:"model_order"`
	EffectiveP   int                `json:"effective_p"`
	LjungBoxP    *float64           `json:"ljung_box_p,omitempty"`
	Summary      Insights           `json:"summary"`

	Model *arima.Summary `json:"-"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the time source used to date forecasts of unindexed series.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger for stage outcomes.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithMaxDifferencing bounds the differencing order search.
func WithMaxDifferencing(n int) Option {
	return func(p *Pipeline) { p.maxDiff = n }
}

// WithTester replaces the ADF stationarity test.
func WithTester(t stats.Tester) Option {
	return func(p *Pipeline) { p.tester = t }
}

// Pipeline chains smoothing, differencing selection, scaling, backtest and
// forecast. A Pipeline holds no per-run state and may be shared.
type Pipeline struct {
	now     func() time.Time
	log     zerolog.Logger
	maxDiff int
	tester  stats.Tester
}

// NewPipeline returns a pipeline with the default settings.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		now:     time.Now,
		log:     zerolog.Nop(),
		maxDiff: MaxDifferencing,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// prepared is the state shared by Backtest and Run.
type prepared struct {
	smoothed *timeseries.Series
	scaled   *timeseries.Series
	diff     *stats.DifferencingResult
	state    scaler.State
	accuracy Accuracy
}

// Backtest is the outcome of the evaluation half of the pipeline.
type Backtest struct {
	Ticker       string       `json:"ticker"`
	Observations int          `json:"observations"`
	Differencing int          `json:"differencing_order"`
	ADFPValue    float64      `json:"adf_p_value"`
	Scaler       scaler.State `json:"scaler"`
	Accuracy     Accuracy     `json:"rmse"`
	PriceRMSE    Accuracy     `json:"price_rmse"`
}

func (p *Pipeline) prepare(log zerolog.Logger, ticker string, prices *timeseries.Series) (*prepared, error) {
	smoothed, err := prices.RollingMean(SmoothingWindow)
	if err != nil {
		log.Warn().Err(err).Int("observations", prices.Len()).Msg("smoothing failed")
		return nil, fmt.Errorf("smooth: %w", err)
	}
	smoothed.Name = ticker

	diff, err := stats.Selector{Test: p.tester, MaxIterations: p.maxDiff}.Select(smoothed)
	if err != nil {
		log.Warn().Err(err).Msg("differencing order selection failed")
		return nil, fmt.Errorf("select differencing order: %w", err)
	}
	log.Debug().Int("d", diff.Order).Float64("adf_p", diff.PValue).Msg("differencing order selected")

	scaled, state, err := scaler.FitTransform(smoothed.Values)
	if err != nil {
		log.Warn().Err(err).Msg("scaling failed")
		return nil, fmt.Errorf("scale: %w", err)
	}
	scaledSeries := smoothed.WithValues(scaled)

	accuracy, err := Evaluate(scaledSeries, diff.Order)
	if err != nil {
		log.Warn().Err(err).Msg("backtest failed")
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	log.Debug().Stringer("rmse", accuracy).Msg("backtest complete")

	return &prepared{
		smoothed: smoothed,
		scaled:   scaledSeries,
		diff:     diff,
		state:    state,
		accuracy: accuracy,
	}, nil
}

func (pr *prepared) priceRMSE() Accuracy {
	if rmse, ok := pr.accuracy.Value(); ok {
		return Score(stats.Round(pr.state.InverseScale(rmse), 2))
	}
	return Unavailable()
}

// Backtest runs the pipeline up to the accuracy estimate.
func (p *Pipeline) Backtest(ticker string, prices *timeseries.Series) (*Backtest, error) {
	log := p.log.With().Str("ticker", ticker).Logger()
	pr, err := p.prepare(log, ticker, prices)
	if err != nil {
		return nil, err
	}
	return &Backtest{
		Ticker:       ticker,
		Observations: prices.Len(),
		Differencing: pr.diff.Order,
		ADFPValue:    pr.diff.PValue,
		Scaler:       pr.state,
		Accuracy:     pr.accuracy,
		PriceRMSE:    pr.priceRMSE(),
	}, nil
}

// Run processes a raw closing-price series.
func (p *Pipeline) Run(ticker string, prices *timeseries.Series) (*Report, error) {
	log := p.log.With().Str("ticker", ticker).Logger()
	pr, err := p.prepare(log, ticker, prices)
	if err != nil {
		return nil, err
	}

	scaledFc, model, err := forecastWith(pr.scaled, pr.diff.Order, p.now())
	if err != nil {
		log.Warn().Err(err).Msg("model fit failed")
		return nil, fmt.Errorf("forecast: %w", err)
	}
	fc := scaledFc.WithValues(pr.state.Inverse(scaledFc.Values))
	fc.Name = ticker

	summary := model.Summary()
	report := &Report{
		Ticker:       ticker,
		GeneratedAt:  p.now().UTC(),
		Observations: prices.Len(),
		Smoothed:     pr.smoothed,
		Differencing: pr.diff.Order,
		ADFPValue:    pr.diff.PValue,
		Scaler:       pr.state,
		Accuracy:     pr.accuracy,
		PriceRMSE:    pr.priceRMSE(),
		Forecast:     fc,
		ModelOrder:   summary.Order.String(),
		EffectiveP:   summary.EffectiveP,
		Model:        summary,
	}
	if lb := summary.LjungBox; lb != nil && !math.IsNaN(lb.PValue) {
		pv := lb.PValue
		report.LjungBoxP = &pv
	}
	report.Summary = Summarize(report)

	log.Debug().
		Int("effective_p", summary.EffectiveP).
		Float64("last_forecast", fc.Last()).
		Msg("forecast complete")
	return report, nil
}
