// Package pricecast forecasts daily closing prices 30 calendar days ahead.
//
// A run smooths the raw closes with a 7-day trailing mean, picks the
// differencing order with the Augmented Dickey-Fuller test, z-scores the
// series, backtests an ARIMA(30,d,1) on the last 60 observations and fits the
// same model on the full history. Forecasts are scaled back to prices.
//
// # Packages
//
//   - timeseries: the Series type, rolling mean, differencing and CSV I/O
//   - stats: ADF test, differencing order selection, ACF, Ljung-Box, RMSE
//   - scaler: z-score standardisation and its inverse
//   - arima: ARIMA(p,d,q) estimation by conditional sum of squares
//   - forecast: backtest evaluator, forecaster and the end-to-end pipeline
//   - marketdata: CSV directory and Yahoo chart API price sources
//   - service: caching, run history and concurrent multi-ticker runs
//
// # Quick Start
//
//	series, _ := timeseries.LoadCSV("AAPL.csv", nil)
//	report, err := forecast.NewPipeline().Run("AAPL", series)
//	if err != nil {
//		return err
//	}
//	fmt.Println(report.Accuracy, report.Forecast.Values)
//
// The cmd/pricecast binary wraps the same pipeline as a CLI and an HTTP API.
package pricecast
