package forecast

import (
	"github.com/sartorproj/pricecast/arima"
	"github.com/sartorproj/pricecast/scaler"
	"github.com/sartorproj/pricecast/stats"
	"github.com/sartorproj/pricecast/timeseries"
)

// Failure kinds returned by the pipeline. Every error it returns wraps one of
// these and can be tested with errors.Is.
var (
	// ErrInsufficientData: the series is shorter than the smoothing window or
	// than the model needs.
	ErrInsufficientData = timeseries.ErrInsufficientData
	// ErrNonConvergence: differencing never produced a stationary series.
	ErrNonConvergence = stats.ErrNonConvergence
	// ErrDegenerateSeries: the stationarity test could not be computed.
	ErrDegenerateSeries = stats.ErrDegenerateSeries
	// ErrDegenerateScale: the smoothed series has zero variance.
	ErrDegenerateScale = scaler.ErrDegenerateScale
	// ErrModelFit: ARIMA estimation failed.
	ErrModelFit = arima.ErrModelFit
)
