// Package forecast turns a daily closing-price series into a 30-day point
// forecast and a backtest accuracy score.
//
// The pipeline smooths prices with a 7-day trailing mean, picks the number of
// differences with the ADF test, z-scores the smoothed series, backtests an
// ARIMA(30,d,1) on the last 60 observations and forecasts 30 calendar days
// ahead, returning prices in the original units:
//
//	report, err := forecast.NewPipeline().Run("AAPL", prices)
//	if errors.Is(err, forecast.ErrInsufficientData) {
//		// not enough history
//	}
//	for i, ts := range report.Forecast.Timestamps {
//		fmt.Println(ts.Format("2006-01-02"), report.Forecast.Values[i])
//	}
package forecast
