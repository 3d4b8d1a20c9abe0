package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sartorproj/pricecast/timeseries"
)

// CSVSource reads <Dir>/<TICKER>.csv files with Date and Close columns.
type CSVSource struct {
	Dir     string
	Options *timeseries.CSVOptions
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir, Options: timeseries.DefaultCSVOptions()}
}

func (c *CSVSource) GetSeries(_ context.Context, ticker string, start time.Time) (*timeseries.Series, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(c.Dir, ticker+".csv")
	series, err := timeseries.LoadCSV(path, c.Options)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSource, path, err)
	}

	series = since(series, start)
	series.Name = ticker
	return series, nil
}
