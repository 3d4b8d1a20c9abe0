// Package timeseries provides the date-indexed price series used by the
// forecasting pipeline.
package timeseries

import (
	"errors"
	"math"
	"time"
)

// Series is an ordered sequence of observations. Timestamps is either empty
// (no calendar index) or the same length as Values and strictly increasing.
type Series struct {
	Timestamps []time.Time `json:"timestamps,omitempty"`
	Values     []float64   `json:"values"`
	Name       string      `json:"name,omitempty"`
}

// New creates a series without a calendar index.
func New(values []float64) *Series {
	return &Series{Values: values}
}

// NewWithTimestamps creates a date-indexed series.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	for i := 1; i < len(timestamps); i++ {
		if !timestamps[i].After(timestamps[i-1]) {
			return nil, ErrUnsorted
		}
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Values)
}

// HasIndex reports whether every value carries a timestamp.
func (s *Series) HasIndex() bool {
	return len(s.Values) > 0 && len(s.Timestamps) == len(s.Values)
}

// LastTimestamp returns the timestamp of the final observation.
func (s *Series) LastTimestamp() (time.Time, bool) {
	if !s.HasIndex() {
		return time.Time{}, false
	}
	return s.Timestamps[len(s.Timestamps)-1], true
}

// Last returns the final value, or NaN for an empty series.
func (s *Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	return Mean(s.Values)
}

// Variance calculates the population variance of the series.
func (s *Series) Variance() float64 {
	return Variance(s.Values)
}

// Std calculates the population standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// IsConstant reports whether every value is identical.
func (s *Series) IsConstant() bool {
	for _, v := range s.Values[min(1, len(s.Values)):] {
		if v != s.Values[0] {
			return false
		}
	}
	return true
}

// Diff calculates the first difference of the series.
func (s *Series) Diff() *Series {
	return s.DiffN(1)
}

// DiffN applies the first-difference operator n times. Each step drops the
// leading observation, so the result has Len()-n values.
func (s *Series) DiffN(n int) *Series {
	out := s.Copy()
	for i := 0; i < n; i++ {
		out = out.diffOnce()
	}
	return out
}

func (s *Series) diffOnce() *Series {
	if len(s.Values) < 2 {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, len(s.Values)-1)
	for i := 1; i < len(s.Values); i++ {
		values[i-1] = s.Values[i] - s.Values[i-1]
	}

	var timestamps []time.Time
	if s.HasIndex() {
		timestamps = make([]time.Time, len(values))
		copy(timestamps, s.Timestamps[1:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// RollingMean returns the trailing moving average over window observations.
// The leading window-1 positions have no full window and are dropped, so the
// result is aligned with the timestamps of the last observation of each window.
func (s *Series) RollingMean(window int) (*Series, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if len(s.Values) < window {
		return nil, Insufficient("rolling mean", window, len(s.Values))
	}

	result := make([]float64, len(s.Values)-window+1)
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += s.Values[i]
	}
	result[0] = sum / float64(window)

	for i := window; i < len(s.Values); i++ {
		sum += s.Values[i] - s.Values[i-window]
		result[i-window+1] = sum / float64(window)
	}

	var timestamps []time.Time
	if s.HasIndex() {
		timestamps = make([]time.Time, len(result))
		copy(timestamps, s.Timestamps[window-1:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     result,
		Name:       s.Name,
	}, nil
}

// Slice returns observations [start, end), clamped to the series bounds.
func (s *Series) Slice(start, end int) *Series {
	start = max(start, 0)
	end = min(end, len(s.Values))
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	var timestamps []time.Time
	if s.HasIndex() {
		timestamps = make([]time.Time, len(values))
		copy(timestamps, s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Tail returns the last n observations.
func (s *Series) Tail(n int) *Series {
	return s.Slice(len(s.Values)-n, len(s.Values))
}

// WithValues returns a series sharing this series' index but carrying values.
// values must have the same length as the series.
func (s *Series) WithValues(values []float64) *Series {
	out := &Series{Values: values, Name: s.Name}
	if s.HasIndex() {
		out.Timestamps = make([]time.Time, len(s.Timestamps))
		copy(out.Timestamps, s.Timestamps)
	}
	return out
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	var timestamps []time.Time
	if s.Timestamps != nil {
		timestamps = make([]time.Time, len(s.Timestamps))
		copy(timestamps, s.Timestamps)
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Mean returns the arithmetic mean of values, or 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance (divisor n) of values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}
