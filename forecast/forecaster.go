package forecast

import (
	"fmt"
	"time"

	"github.com/sartorproj/pricecast/arima"
	"github.com/sartorproj/pricecast/timeseries"
)

// Forecast fits the model on the whole series and returns Horizon daily
// points. Dates start the calendar day after the last timestamp; now is the
// anchor only when the series has no index. Values stay on the input scale.
func Forecast(series *timeseries.Series, d int, now time.Time) (*timeseries.Series, error) {
	out, _, err := forecastWith(series, d, now)
	return out, err
}

// forecastWith is Forecast returning the fitted model as well.
func forecastWith(series *timeseries.Series, d int, now time.Time) (*timeseries.Series, *arima.Model, error) {
	model, err := fitModel(series, d)
	if err != nil {
		return nil, nil, err
	}
	preds, err := model.Predict(Horizon)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrModelFit, err)
	}

	anchor, ok := series.LastTimestamp()
	if !ok {
		anchor = now
	}
	out, err := timeseries.NewWithTimestamps(ForecastDates(anchor, Horizon), preds)
	if err != nil {
		return nil, nil, fmt.Errorf("forecast index: %w", err)
	}
	out.Name = series.Name
	return out, model, nil
}

// ForecastDates returns n consecutive calendar days following anchor's date,
// at midnight in anchor's location.
func ForecastDates(anchor time.Time, n int) []time.Time {
	y, m, d := anchor.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day.AddDate(0, 0, i+1)
	}
	return dates
}
