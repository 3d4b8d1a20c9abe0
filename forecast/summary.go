package forecast

import (
	"math"

	"github.com/sartorproj/pricecast/stats"
)

// Trend is the direction of the forecast path.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Risk buckets forecast volatility in price units.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Volatility thresholds between risk bands.
const (
	lowRiskVolatility    = 5.0
	mediumRiskVolatility = 15.0
)

const recommendConfidence = 70.0

// Insights summarises a forecast for presentation.
type Insights struct {
	Trend          Trend    `json:"trend"`
	Change         float64  `json:"change"`
	ChangePct      float64  `json:"change_pct"`
	LastPrice      float64  `json:"last_price"`
	PredictedPrice float64  `json:"predicted_price"`
	Volatility     float64  `json:"volatility"`
	Risk           Risk     `json:"risk"`
	Confidence     *float64 `json:"confidence,omitempty"` // percent; nil without a backtest
	Recommended    bool     `json:"recommended"`
}

// Summarize derives the trend, 30-day change, volatility and risk band of a
// report's forecast. Confidence is (1-rmse/100) as a percentage, clamped to
// [0, 100].
func Summarize(r *Report) Insights {
	var in Insights
	if r.Smoothed != nil && r.Smoothed.Len() > 0 {
		in.LastPrice = r.Smoothed.Last()
	}
	if r.Forecast == nil || r.Forecast.Len() == 0 {
		return in
	}

	vals := r.Forecast.Values
	first, last := vals[0], vals[len(vals)-1]
	in.PredictedPrice = last
	in.Change = stats.Round(last-first, 2)
	if first != 0 {
		in.ChangePct = stats.Round((last-first)/first*100, 2)
	}
	in.Trend = TrendDown
	if last > first {
		in.Trend = TrendUp
	}

	in.Volatility = sampleStd(vals)
	switch {
	case in.Volatility < lowRiskVolatility:
		in.Risk = RiskLow
	case in.Volatility < mediumRiskVolatility:
		in.Risk = RiskMedium
	default:
		in.Risk = RiskHigh
	}

	if rmse, ok := r.Accuracy.Value(); ok {
		c := math.Max(0, math.Min(100, (1-rmse/100)*100))
		in.Confidence = &c
		in.Recommended = c > recommendConfidence
	}
	return in
}

// sampleStd is the n-1 standard deviation.
func sampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(n-1))
}
