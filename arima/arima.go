// Package arima implements ARIMA (AutoRegressive Integrated Moving Average) models.
package arima

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/pricecast/stats"
	"github.com/sartorproj/pricecast/timeseries"
)

// minResidualObs is the number of differenced observations required beyond
// the MA order.
const minResidualObs = 10

var (
	// ErrModelFit is returned when estimation produces unusable parameters.
	ErrModelFit = errors.New("model fit failed")
	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = errors.New("model must be fitted before prediction")
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order (number of moving average terms)
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model represents an ARIMA model. A fitted Model is not modified by Predict
// and may be shared for prediction across goroutines.
type Model struct {
	Order      Order
	EffectiveP int       // AR order actually estimated; <= Order.P on short windows
	ARCoeffs   []float64 // AR coefficients (phi), length EffectiveP
	MACoeffs   []float64 // MA coefficients (theta)
	Intercept  float64   // mean of the differenced series
	Variance   float64   // Residual variance
	AIC        float64
	AICc       float64
	BIC        float64
	LogLik     float64

	fitted     bool
	nobs       int
	diffData   []float64
	lastLevels []float64 // last value of the series differenced 0..D-1 times
	residuals  []float64
	fittedVals []float64
	startIdx   int
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{Order: Order{P: p, D: d, Q: q}}
}

// MinObservations returns the shortest series Fit accepts for the order.
func (o Order) MinObservations() int {
	return o.D + o.Q + minResidualObs
}

// Fit estimates the model on series by conditional sum of squares.
//
// A window too short to identify P autoregressive lags is fitted with the
// largest order it supports, (n-D-Q-1)/2, reported in EffectiveP.
func (m *Model) Fit(series *timeseries.Series) error {
	if m.Order.P < 0 || m.Order.D < 0 || m.Order.Q < 0 {
		return fmt.Errorf("%w: negative order %s", ErrModelFit, m.Order)
	}
	if n := series.Len(); n < m.Order.MinObservations() {
		return timeseries.Insufficient(m.Order.String(), m.Order.MinObservations(), n)
	}

	m.fitted = false
	m.nobs = series.Len()

	// Keep the tail of every differencing level for integration.
	m.lastLevels = make([]float64, m.Order.D)
	level := series
	for i := 0; i < m.Order.D; i++ {
		m.lastLevels[i] = level.Last()
		level = level.Diff()
	}
	m.diffData = level.Values

	y := m.diffData
	m.EffectiveP = min(m.Order.P, (len(y)-m.Order.Q-1)/2)
	m.EffectiveP = max(m.EffectiveP, 0)
	m.startIdx = max(m.EffectiveP, m.Order.Q)

	m.Intercept = timeseries.Mean(y)
	m.ARCoeffs = make([]float64, m.EffectiveP)
	m.MACoeffs = make([]float64, m.Order.Q)

	if m.EffectiveP > 0 {
		// Yule-Walker start values
		if acf := stats.ACF(level, m.EffectiveP); acf != nil {
			copy(m.ARCoeffs, yuleWalker(acf, m.EffectiveP))
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	m.optimizeCSS(y)

	for _, c := range append(append([]float64{m.Intercept}, m.ARCoeffs...), m.MACoeffs...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: non-finite coefficient", ErrModelFit)
		}
	}
	if math.IsNaN(m.Variance) || math.IsInf(m.Variance, 0) {
		return fmt.Errorf("%w: non-finite residual variance", ErrModelFit)
	}

	m.calculateIC()
	m.fitted = true
	return nil
}

// css computes one-step residuals and their sum of squares for the given
// parameters. Residuals before startIdx are zero.
func (m *Model) css(y, ar, ma []float64) ([]float64, float64) {
	n := len(y)
	residuals := make([]float64, n)
	sse := 0.0

	for t := m.startIdx; t < n; t++ {
		pred := m.Intercept
		for i := range ar {
			pred += ar[i] * (y[t-i-1] - m.Intercept)
		}
		for i := range ma {
			pred += ma[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return residuals, sse
}

// optimizeCSS refines the coefficients by projected gradient descent on the
// conditional sum of squares, halving the step whenever it fails to improve.
func (m *Model) optimizeCSS(y []float64) {
	const (
		maxIter   = 200
		tolerance = 1e-9
	)

	n := float64(len(y))
	p, q := len(m.ARCoeffs), len(m.MACoeffs)
	learningRate := 0.05

	residuals, sse := m.css(y, m.ARCoeffs, m.MACoeffs)

	if p > 0 || q > 0 {
		for iter := 0; iter < maxIter && learningRate > 1e-6; iter++ {
			arGrad := make([]float64, p)
			maGrad := make([]float64, q)
			for t := m.startIdx; t < len(y); t++ {
				for i := 0; i < p; i++ {
					arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
				}
				for i := 0; i < q; i++ {
					maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
				}
			}

			ar := make([]float64, p)
			ma := make([]float64, q)
			for i := range ar {
				ar[i] = clamp(m.ARCoeffs[i] - learningRate*arGrad[i]/n)
			}
			for i := range ma {
				ma[i] = clamp(m.MACoeffs[i] - learningRate*maGrad[i]/n)
			}

			newResiduals, newSSE := m.css(y, ar, ma)
			if math.IsNaN(newSSE) || newSSE > sse {
				learningRate /= 2
				continue
			}

			improvement := sse - newSSE
			m.ARCoeffs, m.MACoeffs = ar, ma
			residuals, sse = newResiduals, newSSE
			if improvement < tolerance {
				break
			}
		}
	}

	m.residuals = residuals
	m.fittedVals = make([]float64, len(y))
	for t := range y {
		m.fittedVals[t] = y[t] - residuals[t]
	}

	count := len(y) - m.startIdx
	dof := count - p - q - 1
	if dof > 0 {
		m.Variance = sse / float64(dof)
	} else if count > 0 {
		m.Variance = sse / float64(count)
	}
}

// clamp keeps a coefficient inside the stationarity/invertibility box.
func clamp(c float64) float64 {
	return math.Max(-0.99, math.Min(0.99, c))
}

// calculateIC calculates AIC, AICc, and BIC from the conditional residuals.
func (m *Model) calculateIC() {
	res := m.residuals[m.startIdx:]
	n := float64(len(res))
	k := float64(m.EffectiveP + m.Order.Q + 1)

	sse := 0.0
	for _, r := range res {
		sse += r * r
	}

	if m.Variance > 0 && n > 0 {
		m.LogLik = -n/2*math.Log(2*math.Pi) - n/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(1)
	}

	m.AIC = -2*m.LogLik + 2*k
	if n-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(n-k-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// Predict returns point forecasts for the next steps observations on the
// scale of the fitted series. Future shocks are taken at their mean of zero.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	y := m.diffData
	n := len(y)

	ext := make([]float64, n+steps)
	copy(ext, y)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept

		for i, phi := range m.ARCoeffs {
			pred += phi * (ext[t-i-1] - m.Intercept)
		}
		for i, theta := range m.MACoeffs {
			if t-i-1 < n {
				pred += theta * m.residuals[t-i-1]
			}
		}

		ext[t] = pred
	}

	forecasts := make([]float64, steps)
	copy(forecasts, ext[n:])
	m.integrate(forecasts)
	return forecasts, nil
}

// integrate undoes differencing in place, innermost level first.
func (m *Model) integrate(forecasts []float64) {
	for k := len(m.lastLevels) - 1; k >= 0; k-- {
		prev := m.lastLevels[k]
		for j := range forecasts {
			forecasts[j] += prev
			prev = forecasts[j]
		}
	}
}

// Residuals returns the one-step residuals on the differenced scale,
// excluding the conditioning observations.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.residuals[m.startIdx:]...)
}

// FittedValues returns the one-step fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.fittedVals...)
}

// Summary describes a fitted model.
type Summary struct {
	Order      Order
	EffectiveP int
	ARCoeffs   []float64
	MACoeffs   []float64
	Intercept  float64
	Variance   float64
	AIC        float64
	AICc       float64
	BIC        float64
	LogLik     float64
	NObs       int
	LjungBox   *stats.LjungBoxResult // nil when residuals are too short
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	lb := stats.LjungBox(timeseries.New(m.Residuals()), 10, m.EffectiveP+m.Order.Q)

	return &Summary{
		Order:      m.Order,
		EffectiveP: m.EffectiveP,
		ARCoeffs:   append([]float64(nil), m.ARCoeffs...),
		MACoeffs:   append([]float64(nil), m.MACoeffs...),
		Intercept:  m.Intercept,
		Variance:   m.Variance,
		AIC:        m.AIC,
		AICc:       m.AICc,
		BIC:        m.BIC,
		LogLik:     m.LogLik,
		NObs:       m.nobs,
		LjungBox:   lb,
	}
}

// yuleWalker solves the Yule-Walker equations by Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	v := 1 - acf[1]*acf[1]

	for k := 1; k < order; k++ {
		if v <= 0 {
			break
		}

		lambda := acf[k+1]
		for j := 0; j < k; j++ {
			lambda -= phi[j] * acf[k-j]
		}
		lambda /= v

		next := make([]float64, k+1)
		for j := 0; j < k; j++ {
			next[j] = phi[j] - lambda*phi[k-1-j]
		}
		next[k] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
	}

	return phi
}
