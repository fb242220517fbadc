package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"vortex/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy it.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQueryMs is the default threshold for slow query warnings.
const DefaultSlowQueryMs = 50

// TimedDB wraps a *sql.DB, logging slow statements and recording every
// statement in the perf collector.
type TimedDB struct {
	db          *sql.DB
	collector   *perf.Collector
	thresholdMs float64
}

var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps db. A non-positive slowMs uses DefaultSlowQueryMs;
// collector may be nil.
// PRE: db is a valid database connection
// POST: Returns a TimedDB ready to hand to store constructors
func NewTimedDB(db *sql.DB, collector *perf.Collector, slowMs int) *TimedDB {
	if slowMs <= 0 {
		slowMs = DefaultSlowQueryMs
	}
	return &TimedDB{db: db, collector: collector, thresholdMs: float64(slowMs)}
}

// RawDB returns the underlying *sql.DB for schema setup and pool config.
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

func (t *TimedDB) observe(op string, start time.Time, err error) {
	ms := perf.Since(start)
	switch {
	case err != nil:
		slog.Debug("query_error", "op", op, "duration_ms", ms, "error", err)
	case ms >= t.thresholdMs:
		slog.Warn("slow_query", "op", op, "duration_ms", ms)
	default:
		slog.Debug("query", "op", op, "duration_ms", ms)
	}
	t.collector.Record(perf.Sample{Kind: perf.KindQuery, Name: op, DurationMs: ms, At: start})
}

// ExecContext wraps sql.DB.ExecContext with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := t.db.ExecContext(ctx, query, args...)
	t.observe("ExecContext", start, err)
	return res, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe("QueryContext", start, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
// Row errors surface on Scan, so only latency is observed here.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe("QueryRowContext", start, nil)
	return row
}

// BeginTx wraps sql.DB.BeginTx with timing. Statements run on the
// returned *sql.Tx are not timed individually.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.observe("BeginTx", start, err)
	return tx, err
}

// Close closes the underlying database.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

// Ping verifies the database connection.
func (t *TimedDB) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}
