package storage

import (
	"context"
	"testing"
	"time"

	"vortex/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) (*TimedDB, *perf.Collector) {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	collector := perf.NewCollector(100)
	return NewTimedDB(db, collector, 0), collector
}

// TestTimedDB_ExecContext verifies ExecContext records timing.
func TestTimedDB_ExecContext(t *testing.T) {
	tdb, collector := openTimedTestDB(t)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimedDB_QueryPaths verifies QueryContext and QueryRowContext pass results through.
func TestTimedDB_QueryPaths(t *testing.T) {
	tdb, collector := openTimedTestDB(t)
	ctx := context.Background()
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")

	rows, err := tdb.QueryContext(ctx, "SELECT id FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}

	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}
}

// TestTimedDB_BeginTx verifies transactions work through the wrapper.
func TestTimedDB_BeginTx(t *testing.T) {
	tdb, _ := openTimedTestDB(t)
	ctx := context.Background()

	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES ('1', 'a')"); err != nil {
		t.Fatalf("tx exec: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	var n int
	tdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&n)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

// TestTimedDB_NilCollector verifies the wrapper works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	db := openTestDB(t)
	tdb := NewTimedDB(db, nil, 5)
	if _, err := tdb.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors reach the caller.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	tdb, _ := openTimedTestDB(t)
	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO missing VALUES (1)"); err == nil {
		t.Error("expected error from ExecContext")
	}
	if _, err := tdb.QueryContext(context.Background(), "SELECT * FROM missing"); err == nil {
		t.Error("expected error from QueryContext")
	}
}

// TestTimedDB_CancelledContext verifies context cancellation propagates.
func TestTimedDB_CancelledContext(t *testing.T) {
	tdb, _ := openTimedTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	if _, err := tdb.ExecContext(ctx, "SELECT 1"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
