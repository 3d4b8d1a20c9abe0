package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for loading daily price files.
type CSVOptions struct {
	DateColumn  string // Column name for session dates (default: "Date")
	ValueColumn string // Column name for prices (default: "Close")
	DateFormat  string // Preferred date layout (default: "2006-01-02")
	Delimiter   rune   // Field delimiter (default: ',')
}

// DefaultCSVOptions returns options matching a Yahoo-style daily export.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateColumn:  "Date",
		ValueColumn: "Close",
		DateFormat:  "2006-01-02",
		Delimiter:   ',',
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"01/02/2006",
}

// LoadCSV loads a date-indexed price series from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a date-indexed price series. Rows with an empty or
// non-numeric price (holidays exported as "null") are skipped; the remaining
// rows must be in strictly increasing date order.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch {
		case strings.EqualFold(h, opts.DateColumn):
			dateIdx = i
		case strings.EqualFold(h, opts.ValueColumn):
			valueIdx = i
		}
	}
	if dateIdx == -1 {
		return nil, fmt.Errorf("date column %q not found", opts.DateColumn)
	}
	if valueIdx == -1 {
		return nil, fmt.Errorf("value column %q not found", opts.ValueColumn)
	}

	var (
		timestamps []time.Time
		values     []float64
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateIdx >= len(record) || valueIdx >= len(record) {
			continue
		}

		valStr := strings.TrimSpace(strings.Trim(record[valueIdx], "\""))
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			continue
		}

		ts, err := parseDate(strings.TrimSpace(strings.Trim(record[dateIdx], "\"")), opts.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		timestamps = append(timestamps, ts)
		values = append(values, val)
	}

	if len(values) == 0 {
		return nil, errors.New("no valid data found in CSV")
	}

	return NewWithTimestamps(timestamps, values)
}

func parseDate(s, preferred string) (time.Time, error) {
	if preferred != "" {
		if ts, err := time.Parse(preferred, s); err == nil {
			return ts, nil
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// WriteCSV writes the series as Date,<name> rows. A series without an index
// is written with a 1-based row number instead of a date.
func WriteCSV(w io.Writer, series *Series, valueColumn string) error {
	if valueColumn == "" {
		valueColumn = "Close"
	}

	cw := csv.NewWriter(w)
	first := "Date"
	if !series.HasIndex() {
		first = "index"
	}
	if err := cw.Write([]string{first, valueColumn}); err != nil {
		return err
	}

	for i, v := range series.Values {
		key := strconv.Itoa(i + 1)
		if series.HasIndex() {
			key = series.Timestamps[i].Format("2006-01-02")
		}
		if err := cw.Write([]string{key, strconv.FormatFloat(v, 'f', -1, 64)}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the series to filename.
func SaveCSV(series *Series, filename, valueColumn string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, series, valueColumn)
}
