package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    ticker          TEXT    NOT NULL,
    op              TEXT    NOT NULL,
    started_at      INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    outcome         TEXT    NOT NULL,
    error           TEXT    NOT NULL DEFAULT '',
    observations    INTEGER NOT NULL DEFAULT 0,
    differencing    INTEGER NOT NULL DEFAULT 0,
    adf_p           REAL    NOT NULL DEFAULT 0,
    rmse            REAL,
    price_rmse      REAL,
    last_price      REAL    NOT NULL DEFAULT 0,
    predicted_price REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS forecast_points (
    run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    day    INTEGER NOT NULL,
    price  REAL    NOT NULL,
    PRIMARY KEY (run_id, day)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker, started_at DESC);
`

// Run is one persisted pipeline execution. RMSE and PriceRMSE are nil when
// the backtest was unavailable.
type Run struct {
	ID             string
	Ticker         string
	Op             string
	StartedAt      time.Time
	Duration       time.Duration
	Outcome        string
	Error          string
	Observations   int
	Differencing   int
	ADFPValue      float64
	RMSE           *float64
	PriceRMSE      *float64
	LastPrice      float64
	PredictedPrice float64
	Points         []Point
}

// Point is one forecast value.
type Point struct {
	Day   time.Time
	Price float64
}

// SQLiteStorage keeps the run history in SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and applies the
// schema. path may be ":memory:".
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps ":memory:" on one connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: foreign keys: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its forecast points in one transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, ticker, op, started_at, duration_ms, outcome, error, observations,
			 differencing, adf_p, rmse, price_rmse, last_price, predicted_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Ticker, run.Op, run.StartedAt.UTC().UnixMilli(), run.Duration.Milliseconds(),
		run.Outcome, run.Error, run.Observations, run.Differencing, run.ADFPValue,
		nullFloat(run.RMSE), nullFloat(run.PriceRMSE), run.LastPrice, run.PredictedPrice,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	if len(run.Points) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecast_points (run_id, day, price) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: prepare: %w", err)
		}
		defer stmt.Close()
		for _, p := range run.Points {
			if _, err := stmt.ExecContext(ctx, run.ID, p.Day.UTC().UnixMilli(), p.Price); err != nil {
				return fmt.Errorf("storage.SaveRun: insert point: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs of ticker, newest first, without
// their forecast points.
func (s *SQLiteStorage) RecentRuns(ctx context.Context, ticker string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, op, started_at, duration_ms, outcome, error, observations,
		       differencing, adf_p, rmse, price_rmse, last_price, predicted_price
		FROM runs
		WHERE ticker = ?
		ORDER BY started_at DESC, id
		LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.RecentRuns: scan: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("storage: run not found")

// GetRun loads one run with its forecast points.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, op, started_at, duration_ms, outcome, error, observations,
		       differencing, adf_p, rmse, price_rmse, last_price, predicted_price
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT day, price FROM forecast_points WHERE run_id = ? ORDER BY day`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day int64
		var p Point
		if err := rows.Scan(&day, &p.Price); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan point: %w", err)
		}
		p.Day = time.UnixMilli(day).UTC()
		run.Points = append(run.Points, p)
	}
	return &run, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                 Run
		startedAt, duration int64
		rmse, priceRMSE     sql.NullFloat64
	)
	err := sc.Scan(
		&run.ID, &run.Ticker, &run.Op, &startedAt, &duration, &run.Outcome, &run.Error,
		&run.Observations, &run.Differencing, &run.ADFPValue, &rmse, &priceRMSE,
		&run.LastPrice, &run.PredictedPrice,
	)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	run.Duration = time.Duration(duration) * time.Millisecond
	if rmse.Valid {
		run.RMSE = &rmse.Float64
	}
	if priceRMSE.Valid {
		run.PriceRMSE = &priceRMSE.Float64
	}
	return run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
