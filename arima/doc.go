// Package arima implements AutoRegressive Integrated Moving Average models.
//
// An ARIMA(p,d,q) model differences a series d times, then fits
//
//	y_t = mu + sum phi_i (y_{t-i} - mu) + sum theta_j e_{t-j} + e_t
//
// by conditional sum of squares, starting from Yule-Walker estimates.
//
// # Basic Usage
//
//	model := arima.New(30, 1, 1)
//	if err := model.Fit(series); err != nil {
//	    log.Fatal(err)
//	}
//	forecasts, _ := model.Predict(30)
//
// Predict integrates the forecasts back to the scale of the fitted series.
//
// # Short windows
//
// A window holding fewer differenced observations than the AR order needs is
// still fitted: the estimated order is truncated to (n-d-q-1)/2 and reported
// in Model.EffectiveP. Windows shorter than Order.MinObservations return an
// error matching timeseries.ErrInsufficientData.
//
// # Residual Analysis
//
//	summary := model.Summary()
//	if summary.LjungBox != nil && summary.LjungBox.PValue < 0.05 {
//	    // residuals still autocorrelated
//	}
package arima
