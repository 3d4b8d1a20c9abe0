package stats

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// RMSE returns the root-mean-square error between actual and predicted.
func RMSE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, errors.New("rmse: length mismatch")
	}
	if len(actual) == 0 {
		return 0, errors.New("rmse: empty input")
	}

	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

// Round rounds v to places decimals with round-half-to-even. Non-finite
// values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
