// Package timeseries provides the Series type shared by every stage of the
// forecasting pipeline.
//
// A Series is an ordered run of observations with an optional calendar index.
// Daily closing prices carry one timestamp per trading session; gaps for
// weekends and holidays are expected and never filled.
//
// # Creating a Series
//
//	series, err := timeseries.NewWithTimestamps(dates, closes)
//	if errors.Is(err, timeseries.ErrUnsorted) {
//	    // dates were not strictly increasing
//	}
//
// # Transformations
//
//	smoothed, err := series.RollingMean(7) // drops the first 6 sessions
//	diff := smoothed.Diff()                // one value shorter
//	diff2 := smoothed.DiffN(2)             // two values shorter
//
// Every transformation returns a new Series; inputs are never modified.
//
// # Loading from CSV
//
//	series, err := timeseries.LoadCSV("AAPL.csv", timeseries.DefaultCSVOptions())
//
// # Errors
//
// Operations on series that are too short return an *InsufficientDataError,
// which matches ErrInsufficientData under errors.Is.
package timeseries
