package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/pricecast/timeseries"
)

func reportWith(values []float64, acc Accuracy) *Report {
	return &Report{
		Smoothed: timeseries.New([]float64{97, 98, 99}),
		Forecast: timeseries.New(values),
		Accuracy: acc,
	}
}

func TestSummarizeRisingForecast(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}

	in := Summarize(reportWith(values, Score(0.25)))
	assert.Equal(t, TrendUp, in.Trend)
	assert.Equal(t, 29.0, in.Change)
	assert.Equal(t, 29.0, in.ChangePct)
	assert.Equal(t, 99.0, in.LastPrice)
	assert.Equal(t, 129.0, in.PredictedPrice)
	assert.InDelta(t, 8.803, in.Volatility, 1e-3)
	assert.Equal(t, RiskMedium, in.Risk)

	require.NotNil(t, in.Confidence)
	assert.InDelta(t, 99.75, *in.Confidence, 1e-9)
	assert.True(t, in.Recommended)
}

func TestSummarizeFlatForecast(t *testing.T) {
	in := Summarize(reportWith([]float64{50, 50, 50}, Unavailable()))
	assert.Equal(t, TrendDown, in.Trend)
	assert.Equal(t, 0.0, in.Change)
	assert.Equal(t, RiskLow, in.Risk)
	assert.Nil(t, in.Confidence)
	assert.False(t, in.Recommended)
}

func TestSummarizeRiskBands(t *testing.T) {
	wide := make([]float64, 30)
	for i := range wide {
		wide[i] = 500 - 5*float64(i)
	}
	in := Summarize(reportWith(wide, Score(150)))
	assert.Equal(t, TrendDown, in.Trend)
	assert.Equal(t, RiskHigh, in.Risk)
	require.NotNil(t, in.Confidence)
	assert.Equal(t, 0.0, *in.Confidence)
}

func TestSummarizeEmptyForecast(t *testing.T) {
	in := Summarize(&Report{})
	assert.Equal(t, Insights{}, in)
}
