package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/logger"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/service"
)

// Forecaster is the subset of service.Service the handlers use.
type Forecaster interface {
	Backtest(ctx context.Context, ticker string) (*forecast.Backtest, error)
	Forecast(ctx context.Context, ticker string) (*forecast.Report, error)
	ForecastMany(ctx context.Context, tickers []string) ([]service.Result, error)
	History(ctx context.Context, ticker string, limit int) ([]storage.Run, error)
	Run(ctx context.Context, id string) (*storage.Run, error)
	Invalidate(ctx context.Context, ticker string) (bool, error)
}

type Handler struct {
	svc Forecaster
	log *logger.Logger
}

func NewHandler(svc Forecaster, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/v1")
	g.GET("/evaluate/:ticker", h.Evaluate)
	g.GET("/forecast/:ticker", h.Forecast)
	g.POST("/forecast", h.ForecastBatch)
	g.GET("/history/:ticker", h.History)
	g.GET("/runs/:id", h.Run)
	g.DELETE("/cache/:ticker", h.Invalidate)
}

// Point is one forecast day.
type Point struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// ForecastResponse is the body of a single forecast.
type ForecastResponse struct {
	RunID        string            `json:"run_id"`
	Ticker       string            `json:"ticker"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Observations int               `json:"observations"`
	Differencing int               `json:"differencing_order"`
	ADFPValue    float64           `json:"adf_p_value"`
	RMSE         forecast.Accuracy `json:"rmse"`
	PriceRMSE    forecast.Accuracy `json:"price_rmse"`
	ModelOrder   string            `json:"model_order"`
	EffectiveP   int               `json:"effective_p"`
	LjungBoxP    *float64          `json:"ljung_box_p,omitempty"`
	Summary      forecast.Insights `json:"summary"`
	Forecast     []Point           `json:"forecast"`
}

func newForecastResponse(r *forecast.Report) ForecastResponse {
	points := make([]Point, r.Forecast.Len())
	for i, v := range r.Forecast.Values {
		points[i] = Point{Date: r.Forecast.Timestamps[i].Format(time.DateOnly), Price: v}
	}
	return ForecastResponse{
		RunID:        r.RunID,
		Ticker:       r.Ticker,
		GeneratedAt:  r.GeneratedAt,
		Observations: r.Observations,
		Differencing: r.Differencing,
		ADFPValue:    r.ADFPValue,
		RMSE:         r.Accuracy,
		PriceRMSE:    r.PriceRMSE,
		ModelOrder:   r.ModelOrder,
		EffectiveP:   r.EffectiveP,
		LjungBoxP:    r.LjungBoxP,
		Summary:      r.Summary,
		Forecast:     points,
	}
}

func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) Evaluate(c echo.Context) error {
	bt, err := h.svc.Backtest(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		h.logError("evaluate", c.Param("ticker"), err)
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, bt)
}

func (h *Handler) Forecast(c echo.Context) error {
	report, err := h.svc.Forecast(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		h.logError("forecast", c.Param("ticker"), err)
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, newForecastResponse(report))
}

// BatchRequest asks for several forecasts at once.
type BatchRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,max=20,dive,required"`
	Format  string   `json:"format" default:"full" validate:"oneof=full summary"`
}

// BatchItem is one ticker's entry in a batch response.
type BatchItem struct {
	Ticker   string            `json:"ticker"`
	Forecast *ForecastResponse `json:"forecast,omitempty"`
	Error    *AppError         `json:"error,omitempty"`
}

func (h *Handler) ForecastBatch(c echo.Context) error {
	req := &BatchRequest{}
	if verrs := ReadAndValidateRequest(c, req); verrs != nil {
		return BadRequestResponse(c, verrs)
	}

	results, err := h.svc.ForecastMany(c.Request().Context(), req.Tickers)
	if err != nil {
		return ErrorResponse(c, err)
	}

	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i].Ticker = r.Ticker
		if r.Err != nil {
			items[i].Error = toAppError(r.Err)
			continue
		}
		resp := newForecastResponse(r.Report)
		if req.Format == "summary" {
			resp.Forecast = nil
		}
		items[i].Forecast = &resp
	}
	return DataResponse(c, http.StatusOK, items)
}

// HistoryQuery bounds the number of runs returned.
type HistoryQuery struct {
	Limit int `query:"limit" default:"20" validate:"min=1,max=500"`
}

// RunResponse is a stored run as served over HTTP.
type RunResponse struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	Op             string    `json:"op"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	Observations   int       `json:"observations"`
	Differencing   int       `json:"differencing_order"`
	ADFPValue      float64   `json:"adf_p_value"`
	RMSE           *float64  `json:"rmse"`
	PriceRMSE      *float64  `json:"price_rmse"`
	LastPrice      float64   `json:"last_price,omitempty"`
	PredictedPrice float64   `json:"predicted_price,omitempty"`
	Points         []Point   `json:"forecast,omitempty"`
}

func newRunResponse(r storage.Run) RunResponse {
	resp := RunResponse{
		ID:             r.ID,
		Ticker:         r.Ticker,
		Op:             r.Op,
		StartedAt:      r.StartedAt,
		DurationMS:     r.Duration.Milliseconds(),
		Outcome:        r.Outcome,
		Error:          r.Error,
		Observations:   r.Observations,
		Differencing:   r.Differencing,
		ADFPValue:      r.ADFPValue,
		RMSE:           r.RMSE,
		PriceRMSE:      r.PriceRMSE,
		LastPrice:      r.LastPrice,
		PredictedPrice: r.PredictedPrice,
	}
	for _, p := range r.Points {
		resp.Points = append(resp.Points, Point{Date: p.Day.Format(time.DateOnly), Price: p.Price})
	}
	return resp
}

func (h *Handler) History(c echo.Context) error {
	q := &HistoryQuery{}
	if verrs := ReadAndValidateRequest(c, q); verrs != nil {
		return BadRequestResponse(c, verrs)
	}
	runs, err := h.svc.History(c.Request().Context(), c.Param("ticker"), q.Limit)
	if err != nil {
		h.logError("history", c.Param("ticker"), err)
		return ErrorResponse(c, err)
	}
	out := make([]RunResponse, len(runs))
	for i, r := range runs {
		out[i] = newRunResponse(r)
	}
	return SuccessResponse(c, out)
}

func (h *Handler) Run(c echo.Context) error {
	run, err := h.svc.Run(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logError("run", c.Param("id"), err)
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, newRunResponse(*run))
}

// Invalidate drops the cached results of a ticker so the next request
// recomputes them.
func (h *Handler) Invalidate(c echo.Context) error {
	removed, err := h.svc.Invalidate(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		h.logError("invalidate", c.Param("ticker"), err)
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, map[string]bool{"invalidated": removed})
}

func (h *Handler) logError(op, ticker string, err error) {
	status := toAppError(err).Status
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", logger.String("op", op), logger.String("ticker", ticker), logger.Error(err))
		return
	}
	h.log.Debug("request rejected", logger.String("op", op), logger.String("ticker", ticker), logger.Error(err))
}
