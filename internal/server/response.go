package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/service"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AppError is an error body with a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// DataResponse writes data under the envelope with statusCode.
func DataResponse(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// ErrorResponse maps a service error to its HTTP status.
func ErrorResponse(c echo.Context, err error) error {
	appErr := toAppError(err)
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// StatusClientClosedRequest reports a request the client abandoned.
const StatusClientClosedRequest = 499

// toAppError maps data problems to 422, market data failures to 502 and
// everything else to 500.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code := service.Outcome(err)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, marketdata.ErrInvalidTicker):
		status = http.StatusBadRequest
	case errors.Is(err, marketdata.ErrUnknownTicker):
		status = http.StatusNotFound
	case errors.Is(err, forecast.ErrInsufficientData),
		errors.Is(err, forecast.ErrDegenerateScale),
		errors.Is(err, forecast.ErrDegenerateSeries),
		errors.Is(err, forecast.ErrNonConvergence):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, service.ErrNoHistory):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, context.Canceled):
		status = StatusClientClosedRequest
		msg = "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, marketdata.ErrSource):
		status = http.StatusBadGateway
	default:
		msg = "forecast failed"
	}
	return &AppError{Code: "ERR_" + strings.ToUpper(code), Message: msg, Status: status}
}
