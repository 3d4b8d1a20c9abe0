package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sartorproj/pricecast/timeseries"
)

var (
	// ErrUnknownTicker: the source has no data for the symbol.
	ErrUnknownTicker = errors.New("marketdata: unknown ticker")
	// ErrSource: the source failed to deliver data.
	ErrSource = errors.New("marketdata: source unavailable")
	// ErrInvalidTicker: the symbol is malformed.
	ErrInvalidTicker = errors.New("marketdata: invalid ticker")
)

// Source delivers daily closing prices for a ticker from start onwards.
type Source interface {
	GetSeries(ctx context.Context, ticker string, start time.Time) (*timeseries.Series, error)
}

var validate = validator.New()

// NormalizeTicker upper-cases and validates a symbol such as "AAPL",
// "BRK-B" or "^GSPC".
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if err := validate.Var(t, "required,max=16,printascii"); err != nil {
		return "", errors.Join(ErrInvalidTicker, err)
	}
	if strings.ContainsAny(t, `/\ `) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return t, nil
}

// since returns the observations on or after start.
func since(s *timeseries.Series, start time.Time) *timeseries.Series {
	if start.IsZero() || !s.HasIndex() {
		return s
	}
	i := sort.Search(len(s.Timestamps), func(i int) bool {
		return !s.Timestamps[i].Before(start)
	})
	return s.Slice(i, s.Len())
}
