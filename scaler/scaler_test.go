package scaler

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTransform(t *testing.T) {
	scaled, st, err := FitTransform([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, st.Mean, 1e-12)
	assert.InDelta(t, 2.0, st.Std, 1e-12)
	assert.InDelta(t, -1.5, scaled[0], 1e-12)
	assert.InDelta(t, 2.0, scaled[7], 1e-12)

	mean, sumSq := 0.0, 0.0
	for _, v := range scaled {
		mean += v
	}
	mean /= float64(len(scaled))
	for _, v := range scaled {
		sumSq += (v - mean) * (v - mean)
	}
	assert.InDelta(t, 0.0, mean, 1e-12)
	assert.InDelta(t, 1.0, sumSq/float64(len(scaled)), 1e-12)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for trial := 0; trial < 20; trial++ {
		values := make([]float64, 10+trial*7)
		for i := range values {
			values[i] = 50 + 400*rng.Float64()
		}

		scaled, st, err := FitTransform(values)
		require.NoError(t, err)

		back := st.Inverse(scaled)
		for i := range values {
			assert.InDelta(t, values[i], back[i], 1e-9)
		}
	}
}

func TestConstantSeriesIsDegenerate(t *testing.T) {
	values := make([]float64, 90)
	for i := range values {
		values[i] = 123.45
	}

	scaled, _, err := FitTransform(values)
	require.ErrorIs(t, err, ErrDegenerateScale)
	assert.Nil(t, scaled)
}

func TestEmptyInput(t *testing.T) {
	_, _, err := FitTransform(nil)
	assert.ErrorIs(t, err, ErrDegenerateScale)
}

func TestFlatSeriesWithRoundingNoise(t *testing.T) {
	for _, level := range []float64{123.45, 0.1, 98765.4321, -17.3} {
		values := make([]float64, 90)
		for i := range values {
			values[i] = level
		}
		_, _, err := FitTransform(values)
		assert.ErrorIs(t, err, ErrDegenerateScale, "level %v", level)
	}

	// rolling-mean output of a flat series differs from the level only in the last bits
	values := make([]float64, 84)
	for i := range values {
		values[i] = 123.45
		if i%3 == 0 {
			values[i] = math.Nextafter(123.45, 200)
		}
	}
	_, _, err := FitTransform(values)
	assert.ErrorIs(t, err, ErrDegenerateScale)
}

func TestSmallButRealSpreadIsScaled(t *testing.T) {
	values := []float64{100, 100.01, 99.99, 100.02, 99.98}
	scaled, st, err := FitTransform(values)
	require.NoError(t, err)
	assert.Greater(t, st.Std, 0.0)
	assert.InDelta(t, 0.0, scaled[0], 1e-9)
}

func TestInputNotModified(t *testing.T) {
	values := []float64{1, 2, 3}
	_, _, err := FitTransform(values)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values)
}

func TestInverseScale(t *testing.T) {
	st := State{Mean: 100, Std: 4}
	assert.Equal(t, 2.0, st.InverseScale(0.5))
	assert.False(t, math.IsNaN(st.Inverse([]float64{0})[0]))
}
