package forecast

import (
	"errors"
	"fmt"

	"github.com/sartorproj/pricecast/arima"
	"github.com/sartorproj/pricecast/stats"
	"github.com/sartorproj/pricecast/timeseries"
)

const (
	SmoothingWindow   = 7  // trailing moving-average window
	Horizon           = 30 // forecast steps, one per calendar day
	AROrder           = 30
	MAOrder           = 1
	BacktestWindow    = 60 // observations used by Evaluate: 30 train, 30 test
	SignificanceLevel = stats.SignificanceLevel
	MaxDifferencing   = stats.DefaultMaxDifferencing
)

// Fit estimates ARIMA(AROrder, d, MAOrder) on series and returns horizon
// point forecasts on the series' own scale.
func Fit(series *timeseries.Series, d, horizon int) ([]float64, error) {
	model, err := fitModel(series, d)
	if err != nil {
		return nil, err
	}
	preds, err := model.Predict(horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFit, err)
	}
	return preds, nil
}

func fitModel(series *timeseries.Series, d int) (*arima.Model, error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: negative differencing order %d", ErrModelFit, d)
	}
	model := arima.New(AROrder, d, MAOrder)
	if err := model.Fit(series); err != nil {
		if errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrModelFit) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrModelFit, err)
	}
	return model, nil
}
