package forecast

import (
	"fmt"

	"github.com/sartorproj/pricecast/stats"
	"github.com/sartorproj/pricecast/timeseries"
)

// Evaluate backtests the model on the last BacktestWindow observations:
// it fits on the first half, forecasts the second half and returns the RMSE
// rounded to two decimals. Shorter series yield Unavailable with no error.
// The RMSE is on the scale of the input, normally z-scores.
func Evaluate(series *timeseries.Series, d int) (Accuracy, error) {
	if series.Len() < BacktestWindow {
		return Unavailable(), nil
	}

	window := series.Tail(BacktestWindow)
	split := BacktestWindow / 2
	train := window.Slice(0, split)
	test := window.Slice(split, BacktestWindow)

	preds, err := Fit(train, d, test.Len())
	if err != nil {
		return Unavailable(), fmt.Errorf("backtest fit: %w", err)
	}
	rmse, err := stats.RMSE(test.Values, preds)
	if err != nil {
		return Unavailable(), fmt.Errorf("backtest rmse: %w", err)
	}
	return Score(stats.Round(rmse, 2)), nil
}
