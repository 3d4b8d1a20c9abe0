package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sartorproj/pricecast/timeseries"
)

const (
	defaultYahooBase = "https://query1.finance.yahoo.com"
	userAgent        = "Mozilla/5.0 (compatible; pricecast/1.0)"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// YahooSource fetches daily bars from the Yahoo Finance chart API with rate
// limiting and retries.
type YahooSource struct {
	http     *http.Client
	baseURL  string
	limiter  *rate.Limiter
	log      zerolog.Logger
	now      func() time.Time
	retryGap time.Duration
}

type YahooOption func(*YahooSource)

func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *YahooSource) { y.http = c }
}

// WithRate limits requests per second.
func WithRate(perSecond float64, burst int) YahooOption {
	return func(y *YahooSource) { y.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func WithYahooLogger(log zerolog.Logger) YahooOption {
	return func(y *YahooSource) { y.log = log }
}

// WithRetryWait sets the first backoff step; later steps double it.
func WithRetryWait(d time.Duration) YahooOption {
	return func(y *YahooSource) { y.retryGap = d }
}

// NewYahooSource returns a client for baseURL, or the public endpoint when
// empty.
func NewYahooSource(baseURL string, opts ...YahooOption) *YahooSource {
	if baseURL == "" {
		baseURL = defaultYahooBase
	}
	y := &YahooSource{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(2, 2),
		log:      zerolog.Nop(),
		now:      time.Now,
		retryGap: baseRetryWait,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Timezone string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetSeries returns adjusted daily closes from start to now. Each bar is
// dated by its session day in the exchange's time zone, at midnight UTC.
func (y *YahooSource) GetSeries(ctx context.Context, ticker string, start time.Time) (*timeseries.Series, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(y.now().Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	var resp chartResponse
	status, err := y.get(ctx, endpoint, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSource, ticker, err)
	}
	if status == http.StatusNotFound || len(resp.Chart.Result) == 0 {
		msg := "no data"
		if resp.Chart.Error != nil {
			msg = resp.Chart.Error.Description
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrUnknownTicker, ticker, msg)
	}

	series, err := toSeries(resp.Chart.Result[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSource, ticker, err)
	}
	series.Name = ticker
	return since(series, dateOf(start, time.UTC)), nil
}

func toSeries(r chartResult) (*timeseries.Series, error) {
	closes := pickCloses(r)
	if len(closes) != len(r.Timestamp) {
		return nil, fmt.Errorf("chart has %d timestamps and %d closes", len(r.Timestamp), len(closes))
	}

	loc := time.UTC
	if r.Meta.Timezone != "" {
		if l, err := time.LoadLocation(r.Meta.Timezone); err == nil {
			loc = l
		}
	}

	var (
		dates  []time.Time
		values []float64
	)
	for i, sec := range r.Timestamp {
		c := closes[i]
		if c == nil || math.IsNaN(*c) {
			continue
		}
		day := dateOf(time.Unix(sec, 0), loc)
		// A live session can repeat the last bar's day; keep the newest.
		if n := len(dates); n > 0 && !day.After(dates[n-1]) {
			if day.Equal(dates[n-1]) {
				values[n-1] = *c
			}
			continue
		}
		dates = append(dates, day)
		values = append(values, *c)
	}
	return timeseries.NewWithTimestamps(dates, values)
}

func pickCloses(r chartResult) []*float64 {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0 {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

// dateOf is the calendar day of t in loc, as midnight UTC.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// get performs a rate-limited GET with exponential backoff on transport
// errors, 429 and 5xx. A 404 is returned to the caller with its decoded body.
func (y *YahooSource) get(ctx context.Context, endpoint string, out any) (int, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := y.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := y.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return 0, fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			y.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return resp.StatusCode, fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			y.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("yahoo request retrying")
			y.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return resp.StatusCode, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil && resp.StatusCode != http.StatusNotFound {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}
	return 0, fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, honouring ctx.
func (y *YahooSource) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * y.retryGap
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
