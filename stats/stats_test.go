package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/pricecast/timeseries"
)

func whiteNoise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	values := make([]float64, n)
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	return values
}

func trend(n int, seed uint64) []float64 {
	noise := whiteNoise(n, seed)
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 2*float64(i) + 0.5*noise[i]
	}
	return values
}

func TestACF(t *testing.T) {
	n := 200
	values := make([]float64, n)
	noise := whiteNoise(n, 7)
	for i := 1; i < n; i++ {
		values[i] = 0.8*values[i-1] + noise[i]
	}

	acf := ACF(timeseries.New(values), 10)
	require.Len(t, acf, 11)
	assert.InDelta(t, 1.0, acf[0], 1e-12)
	assert.Greater(t, acf[1], 0.5)
	assert.Greater(t, acf[1], acf[5])

	assert.Nil(t, ACF(timeseries.New([]float64{2, 2, 2}), 2))
}

func TestADFWhiteNoiseIsStationary(t *testing.T) {
	res, err := ADF(timeseries.New(whiteNoise(200, 1)), 0)
	require.NoError(t, err)

	assert.True(t, res.IsStationary)
	assert.LessOrEqual(t, res.PValue, 0.05)
	assert.Less(t, res.Statistic, -2.86)
	assert.GreaterOrEqual(t, res.Lags, 0)
}

func TestADFTrendIsNotStationary(t *testing.T) {
	res, err := ADF(timeseries.New(trend(150, 3)), 0)
	require.NoError(t, err)

	assert.False(t, res.IsStationary)
	assert.Greater(t, res.PValue, 0.05)
}

func TestADFPValueIsRounded(t *testing.T) {
	p, err := PValue(timeseries.New(trend(120, 5)))
	require.NoError(t, err)
	assert.InDelta(t, math.Round(p*1000)/1000, p, 1e-12)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestADFErrors(t *testing.T) {
	_, err := ADF(timeseries.New([]float64{1, 2, 3}), 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	constant := make([]float64, 50)
	for i := range constant {
		constant[i] = 42
	}
	_, err = ADF(timeseries.New(constant), 0)
	assert.ErrorIs(t, err, ErrDegenerateSeries)
}

func TestMacKinnonPValue(t *testing.T) {
	assert.InDelta(t, 0.05, mackinnonPValue(-2.86), 0.005)
	assert.InDelta(t, 0.01, mackinnonPValue(-3.43), 0.002)
	assert.Equal(t, 1.0, mackinnonPValue(3))
	assert.Equal(t, 0.0, mackinnonPValue(-20))

	prev := 0.0
	for stat := -6.0; stat <= 2.5; stat += 0.25 {
		p := mackinnonPValue(stat)
		assert.GreaterOrEqual(t, p, prev, "p-value must increase with the statistic (stat=%.2f)", stat)
		prev = p
	}
}

func TestLjungBox(t *testing.T) {
	res := LjungBox(timeseries.New(whiteNoise(300, 11)), 10, 0)
	require.NotNil(t, res)
	assert.Equal(t, 10, res.DOF)
	assert.Greater(t, res.PValue, 0.01)

	ar := make([]float64, 300)
	noise := whiteNoise(300, 12)
	for i := 1; i < len(ar); i++ {
		ar[i] = 0.9*ar[i-1] + noise[i]
	}
	res = LjungBox(timeseries.New(ar), 10, 0)
	require.NotNil(t, res)
	assert.Less(t, res.PValue, 0.01)

	assert.Nil(t, LjungBox(timeseries.New([]float64{1, 2}), 10, 0))
}

func TestChiSquaredCDF(t *testing.T) {
	// Reference values of the chi-squared CDF.
	assert.InDelta(t, 0.95, chiSquaredCDF(3.841459, 1), 1e-5)
	assert.InDelta(t, 0.95, chiSquaredCDF(18.307038, 10), 1e-5)
	assert.InDelta(t, 0.5, chiSquaredCDF(1.386294, 2), 1e-5)
	assert.Equal(t, 0.0, chiSquaredCDF(0, 3))
}

func TestRMSE(t *testing.T) {
	v, err := RMSE([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = RMSE([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(12.5), v, 1e-12)

	_, err = RMSE([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = RMSE(nil, nil)
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.123, Round(0.12345, 3))
	assert.Equal(t, 2.5, Round(2.5, 2))
	assert.Equal(t, 0.12, Round(0.125, 2))
	assert.Equal(t, 0.14, Round(0.135, 2))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}
