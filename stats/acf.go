package stats

import (
	"github.com/sartorproj/pricecast/timeseries"
)

// ACF calculates the sample autocorrelation function for lags 0..maxLag.
// It returns nil for a zero-variance series.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	maxLag = min(maxLag, n-1)
	if maxLag < 0 {
		return nil
	}

	mean := series.Mean()
	denom := 0.0
	for _, v := range series.Values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (series.Values[i] - mean) * (series.Values[i-k] - mean)
		}
		acf[k] = sum / denom
	}
	return acf
}
