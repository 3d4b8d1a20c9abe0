package service

import (
	"context"
	"errors"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/marketdata"
)

// Outcome labels used in metrics and the run history.
const (
	OutcomeOK               = "ok"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeDegenerate       = "degenerate"
	OutcomeNonConvergence   = "non_convergence"
	OutcomeModelFit         = "model_fit"
	OutcomeUnknownTicker    = "unknown_ticker"
	OutcomeInvalidTicker    = "invalid_ticker"
	OutcomeSourceError      = "source_error"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Outcome classifies err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, forecast.ErrInsufficientData):
		return OutcomeInsufficientData
	case errors.Is(err, forecast.ErrDegenerateScale), errors.Is(err, forecast.ErrDegenerateSeries):
		return OutcomeDegenerate
	case errors.Is(err, forecast.ErrNonConvergence):
		return OutcomeNonConvergence
	case errors.Is(err, forecast.ErrModelFit):
		return OutcomeModelFit
	case errors.Is(err, marketdata.ErrInvalidTicker):
		return OutcomeInvalidTicker
	case errors.Is(err, marketdata.ErrUnknownTicker):
		return OutcomeUnknownTicker
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, marketdata.ErrSource):
		return OutcomeSourceError
	default:
		return OutcomeError
	}
}
