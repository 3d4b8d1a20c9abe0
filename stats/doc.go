// Package stats provides the statistical tests behind differencing-order
// selection and model diagnostics.
//
// # Stationarity
//
// The Augmented Dickey-Fuller test (constant, AIC lag selection) reports a
// MacKinnon p-value rounded to three decimals:
//
//	adf, err := stats.ADF(series, 0)
//	if err != nil {
//	    // ErrDegenerateSeries or timeseries.ErrInsufficientData
//	}
//	fmt.Printf("ADF: stat=%.4f, p=%.3f\n", adf.Statistic, adf.PValue)
//
// # Differencing order
//
// DifferencingOrder differences a series until the ADF p-value drops to 0.05
// or below. The loop is bounded; a series that never settles returns
// ErrNonConvergence.
//
//	res, err := stats.DifferencingOrder(series, stats.DefaultMaxDifferencing)
//	d := res.Order
//
// # Diagnostics
//
//	acf := stats.ACF(series, 20)
//	lb := stats.LjungBox(residuals, 10, p+q)
//	rmse, err := stats.RMSE(actual, predicted)
package stats
