package arima

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/pricecast/timeseries"
)

func noise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed*7+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func TestNewARIMA(t *testing.T) {
	model := New(30, 1, 1)
	assert.Equal(t, Order{P: 30, D: 1, Q: 1}, model.Order)
	assert.Equal(t, "ARIMA(30,1,1)", model.Order.String())
	assert.Equal(t, 12, model.Order.MinObservations())
}

func TestFitAR1(t *testing.T) {
	n := 400
	e := noise(n, 1)
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		values[i] = 0.7*values[i-1] + e[i]
	}

	model := New(1, 0, 0)
	require.NoError(t, model.Fit(timeseries.New(values)))

	require.Len(t, model.ARCoeffs, 1)
	assert.InDelta(t, 0.7, model.ARCoeffs[0], 0.1)
	assert.InDelta(t, 1.0, model.Variance, 0.25)
	assert.NotEmpty(t, model.Residuals())
}

func TestFitWithDifferencingForecastsDrift(t *testing.T) {
	n := 200
	e := noise(n, 2)
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + 0.5 + 0.1*e[i]
	}

	model := New(2, 1, 1)
	require.NoError(t, model.Fit(timeseries.New(values)))

	forecasts, err := model.Predict(10)
	require.NoError(t, err)
	require.Len(t, forecasts, 10)

	last := values[n-1]
	for h, f := range forecasts {
		expected := last + 0.5*float64(h+1)
		assert.InDelta(t, expected, f, 1.0, "step %d", h+1)
	}
}

func TestSecondOrderIntegration(t *testing.T) {
	// Quadratic: the second difference is constant apart from the noise.
	n := 120
	e := noise(n, 3)
	values := make([]float64, n)
	for i := range values {
		x := float64(i)
		values[i] = 0.05*x*x + 0.001*e[i]
	}

	model := New(1, 2, 0)
	require.NoError(t, model.Fit(timeseries.New(values)))

	forecasts, err := model.Predict(5)
	require.NoError(t, err)
	for h, f := range forecasts {
		x := float64(n + h)
		assert.InDelta(t, 0.05*x*x, f, 0.5, "step %d", h+1)
	}
}

func TestShortWindowTruncatesAROrder(t *testing.T) {
	values := make([]float64, 30)
	e := noise(30, 4)
	for i := range values {
		values[i] = float64(i)*0.1 + 0.05*e[i]
	}

	model := New(30, 1, 1)
	require.NoError(t, model.Fit(timeseries.New(values)))

	assert.Equal(t, 30, model.Order.P)
	assert.Equal(t, (29-1-1)/2, model.EffectiveP)
	assert.Len(t, model.ARCoeffs, model.EffectiveP)

	forecasts, err := model.Predict(30)
	require.NoError(t, err)
	assert.Len(t, forecasts, 30)
	for _, f := range forecasts {
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0))
	}
}

func TestFullOrderOnLongSeries(t *testing.T) {
	e := noise(200, 5)
	model := New(30, 0, 1)
	require.NoError(t, model.Fit(timeseries.New(e)))
	assert.Equal(t, 30, model.EffectiveP)
}

func TestFitInsufficientData(t *testing.T) {
	model := New(30, 1, 1)
	err := model.Fit(timeseries.New(noise(11, 6)))
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
}

func TestPredictBeforeFit(t *testing.T) {
	_, err := New(1, 0, 0).Predict(5)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Nil(t, New(1, 0, 0).Summary())
}

func TestPredictInvalidSteps(t *testing.T) {
	model := New(1, 0, 0)
	require.NoError(t, model.Fit(timeseries.New(noise(50, 7))))

	_, err := model.Predict(0)
	assert.Error(t, err)
}

func TestPredictIsDeterministic(t *testing.T) {
	values := noise(120, 8)
	a, b := New(5, 1, 1), New(5, 1, 1)
	require.NoError(t, a.Fit(timeseries.New(values)))
	require.NoError(t, b.Fit(timeseries.New(values)))

	fa, err := a.Predict(30)
	require.NoError(t, err)
	fb, err := b.Predict(30)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	again, err := a.Predict(30)
	require.NoError(t, err)
	assert.Equal(t, fa, again, "Predict must not mutate the model")
}

func TestSummary(t *testing.T) {
	model := New(2, 0, 1)
	require.NoError(t, model.Fit(timeseries.New(noise(150, 9))))

	s := model.Summary()
	require.NotNil(t, s)
	assert.Equal(t, 150, s.NObs)
	assert.Equal(t, 2, s.EffectiveP)
	assert.Len(t, s.MACoeffs, 1)
	assert.NotNil(t, s.LjungBox)
	assert.False(t, math.IsNaN(s.AIC))
	assert.Less(t, s.AIC, s.AICc)
}

func TestYuleWalkerAR1(t *testing.T) {
	phi := yuleWalker([]float64{1, 0.6, 0.36}, 1)
	assert.InDelta(t, 0.6, phi[0], 1e-12)

	phi = yuleWalker([]float64{1, 0.6, 0.36}, 2)
	assert.InDelta(t, 0.6, phi[0], 1e-12)
	assert.InDelta(t, 0.0, phi[1], 1e-12)
}
