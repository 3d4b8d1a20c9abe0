// Package scaler standardizes series to zero mean and unit variance and
// inverts the transform.
package scaler

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateScale is returned when the input has no variance to scale by.
var ErrDegenerateScale = errors.New("degenerate scale: zero standard deviation")

// zeroScaleTolerance is the relative std below which a series is flat.
const zeroScaleTolerance = 10 * 0x1p-52

// State holds the parameters of a fitted standardization. It is a value type;
// copies are independent and safe to share between goroutines.
type State struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Fit computes the mean and population standard deviation of values.
func Fit(values []float64) (State, error) {
	if len(values) == 0 {
		return State{}, fmt.Errorf("%w: empty input", ErrDegenerateScale)
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(values)))

	if math.IsNaN(std) || math.IsInf(std, 0) || constant(values, mean, std) {
		return State{}, ErrDegenerateScale
	}
	return State{Mean: mean, Std: std}, nil
}

// constant reports whether values carry no spread beyond summation error.
// A flat series of a non-dyadic price (123.45) yields a std near 1e-13, not 0.
func constant(values []float64, mean, std float64) bool {
	if std == 0 {
		return true
	}
	if std < zeroScaleTolerance*math.Abs(mean) {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// FitTransform fits a State on values and returns the standardized copy.
func FitTransform(values []float64) ([]float64, State, error) {
	st, err := Fit(values)
	if err != nil {
		return nil, State{}, err
	}
	return st.Transform(values), st, nil
}

// Transform returns (x-mean)/std for every value.
func (s State) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.Mean) / s.Std
	}
	return out
}

// Inverse returns x*std+mean for every value.
func (s State) Inverse(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.Std + s.Mean
	}
	return out
}

// InverseScale converts a spread measured in scaled units (an RMSE, say)
// back to original units.
func (s State) InverseScale(v float64) float64 {
	return v * s.Std
}
