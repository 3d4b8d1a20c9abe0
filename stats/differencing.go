package stats

import (
	"errors"
	"fmt"

	"github.com/sartorproj/pricecast/timeseries"
)

// SignificanceLevel is the ADF p-value at or below which a series is treated
// as stationary.
const SignificanceLevel = 0.05

// DefaultMaxDifferencing bounds the differencing loop.
const DefaultMaxDifferencing = 5

// ErrNonConvergence is returned when a series is still non-stationary after
// the maximum number of differencing steps.
var ErrNonConvergence = errors.New("series did not become stationary")

// Tester returns a stationarity p-value for a series.
type Tester func(*timeseries.Series) (float64, error)

// DifferencingResult holds the selected differencing order.
type DifferencingResult struct {
	Order  int                // number of first differences applied
	PValue float64            // p-value of the final series (0 if constant)
	Series *timeseries.Series // the series after Order differences
}

// Selector finds the number of first differences needed before Test rejects
// a unit root.
type Selector struct {
	Test          Tester  // default: PValue (ADF)
	MaxIterations int     // default: DefaultMaxDifferencing
	Threshold     float64 // default: SignificanceLevel
}

// DifferencingOrder runs the default ADF selector with at most maxIter
// differencing steps.
func DifferencingOrder(series *timeseries.Series, maxIter int) (*DifferencingResult, error) {
	return Selector{MaxIterations: maxIter}.Select(series)
}

// Select differences series until its p-value is at or below the threshold.
// Exhausting MaxIterations returns ErrNonConvergence. A series that is
// constant at some step has no unit root left and is accepted as stationary.
// The input series is never modified.
func (s Selector) Select(series *timeseries.Series) (*DifferencingResult, error) {
	test := s.Test
	if test == nil {
		test = PValue
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxDifferencing
	}
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = SignificanceLevel
	}

	current := series
	for d := 0; ; d++ {
		if current.Len() > 0 && current.IsConstant() {
			return &DifferencingResult{Order: d, Series: current}, nil
		}

		pValue, err := test(current)
		if err != nil {
			return nil, fmt.Errorf("stationarity test at d=%d: %w", d, err)
		}
		if pValue <= threshold {
			return &DifferencingResult{Order: d, PValue: pValue, Series: current}, nil
		}
		if d == maxIter {
			return nil, fmt.Errorf("%w after %d differences (p=%.3f)", ErrNonConvergence, d, pValue)
		}

		current = current.Diff()
	}
}
