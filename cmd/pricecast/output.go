package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sartorproj/pricecast/forecast"
	"github.com/sartorproj/pricecast/internal/storage"
	"github.com/sartorproj/pricecast/marketdata"
	"github.com/sartorproj/pricecast/service"
	"github.com/sartorproj/pricecast/timeseries"
)

func runOnce(ctx context.Context, out io.Writer, a *app, tickers []string, format, csvDir string, history int) error {
	results, err := a.svc.ForecastMany(ctx, tickers)
	if err != nil {
		return err
	}

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.Ticker, r.Err))
			continue
		}
		if csvDir != "" {
			path := filepath.Join(csvDir, r.Report.Ticker+"_forecast.csv")
			if err := timeseries.SaveCSV(r.Report.Forecast, path, "Close"); err != nil {
				failed = append(failed, fmt.Errorf("%s: write csv: %w", r.Ticker, err))
			}
		}
	}

	switch format {
	case "json":
		if err := writeJSON(out, results); err != nil {
			return err
		}
	default:
		for _, r := range results {
			if r.Err == nil {
				if err := writeTable(out, r.Report); err != nil {
					return err
				}
			}
		}
	}

	if history > 0 {
		for _, r := range results {
			if errors.Is(r.Err, marketdata.ErrInvalidTicker) {
				continue
			}
			runs, err := a.svc.History(ctx, r.Ticker, history)
			if err != nil {
				return err
			}
			ticker, _ := marketdata.NormalizeTicker(r.Ticker)
			if err := writeHistory(out, ticker, runs); err != nil {
				return err
			}
		}
	}
	return errors.Join(failed...)
}

type jsonResult struct {
	Ticker string           `json:"ticker"`
	Report *forecast.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []service.Result) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{Ticker: r.Ticker, Report: r.Report}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTable(w io.Writer, r *forecast.Report) error {
	s := r.Summary
	fmt.Fprintf(w, "\n%s  %s  d=%d  ADF p=%.3f  RMSE=%s (%s in price)\n",
		r.Ticker, r.ModelOrder, r.Differencing, r.ADFPValue, r.Accuracy, r.PriceRMSE)

	table := tablewriter.NewWriter(w)
	table.Header("#", "Date", "Close")
	for i, v := range r.Forecast.Values {
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			r.Forecast.Timestamps[i].Format(time.DateOnly),
			fmt.Sprintf("%.3f", v),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	confidence := "n/a"
	if s.Confidence != nil {
		confidence = fmt.Sprintf("%.1f%%", *s.Confidence)
	}
	fmt.Fprintf(w, "  Trend: %s  Change: %+.2f (%+.2f%%)  Last: %.2f  Volatility: %.2f  Risk: %s  Confidence: %s\n",
		s.Trend, s.Change, s.ChangePct, s.LastPrice, s.Volatility, s.Risk, confidence)
	return nil
}

func writeHistory(w io.Writer, ticker string, runs []storage.Run) error {
	fmt.Fprintf(w, "\nRecent runs for %s\n", ticker)
	table := tablewriter.NewWriter(w)
	table.Header("Started", "Op", "Outcome", "d", "RMSE", "Predicted", "Took")
	for _, run := range runs {
		rmse := "n/a"
		if run.RMSE != nil {
			rmse = fmt.Sprintf("%.2f", *run.RMSE)
		}
		if err := table.Append(
			run.StartedAt.Format(time.DateTime),
			run.Op,
			run.Outcome,
			fmt.Sprintf("%d", run.Differencing),
			rmse,
			fmt.Sprintf("%.2f", run.PredictedPrice),
			run.Duration.String(),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
