package perf

import (
	"sync"
	"testing"
	"time"
)

// TestCollector_RecordAndSnapshot verifies aggregation per kind.
func TestCollector_RecordAndSnapshot(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()

	c.Record(Sample{Kind: KindRequest, Name: "GET /api/conversations", StatusCode: 200, DurationMs: 10, At: now})
	c.Record(Sample{Kind: KindRequest, Name: "GET /api/conversations", StatusCode: 200, DurationMs: 30, At: now})
	c.Record(Sample{Kind: KindQuery, Name: "ExecContext", DurationMs: 5, At: now})
	c.Record(Sample{Kind: KindPush, Name: "watch_messages", DurationMs: 2, At: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.TotalRecorded != 4 {
		t.Errorf("TotalRecorded = %d, want 4", snap.TotalRecorded)
	}
	if len(snap.SlowestPaths) != 1 {
		t.Fatalf("SlowestPaths len = %d, want 1", len(snap.SlowestPaths))
	}
	if snap.SlowestPaths[0].AvgMs != 20 || snap.SlowestPaths[0].MaxMs != 30 {
		t.Errorf("path stat = %+v, want avg 20 max 30", snap.SlowestPaths[0])
	}
	if len(snap.SlowestQueries) != 1 || len(snap.SlowestPushes) != 1 {
		t.Errorf("queries=%d pushes=%d, want 1 each", len(snap.SlowestQueries), len(snap.SlowestPushes))
	}
}

// TestCollector_RingOverwrites verifies the oldest samples are dropped.
func TestCollector_RingOverwrites(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		c.Record(Sample{Kind: KindRequest, Name: "GET /x", DurationMs: float64(i), At: now})
	}
	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.SlowestPaths[0].Count != 3 {
		t.Errorf("Count = %d, want 3", snap.SlowestPaths[0].Count)
	}
	if snap.SlowestPaths[0].AvgMs != 3 {
		t.Errorf("AvgMs = %v, want 3 (samples 2,3,4)", snap.SlowestPaths[0].AvgMs)
	}
}

// TestCollector_Percentiles checks interpolated percentiles.
func TestCollector_Percentiles(t *testing.T) {
	c := NewCollector(200)
	now := time.Now()
	for i := 1; i <= 101; i++ {
		c.Record(Sample{Kind: KindRequest, Name: "GET /p", DurationMs: float64(i), At: now})
	}
	snap := c.Snapshot(now.Add(-time.Minute), 5)
	if snap.RequestP50Ms != 51 {
		t.Errorf("P50 = %v, want 51", snap.RequestP50Ms)
	}
	if snap.RequestP99Ms != 100 {
		t.Errorf("P99 = %v, want 100", snap.RequestP99Ms)
	}
}

// TestCollector_SinceFilter excludes samples older than since.
func TestCollector_SinceFilter(t *testing.T) {
	c := NewCollector(10)
	now := time.Now()
	c.Record(Sample{Kind: KindRequest, Name: "old", DurationMs: 1, At: now.Add(-time.Hour)})
	c.Record(Sample{Kind: KindRequest, Name: "new", DurationMs: 1, At: now})
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Name != "new" {
		t.Errorf("SlowestPaths = %+v, want only new", snap.SlowestPaths)
	}
}

// TestCollector_Concurrent records from many goroutines.
func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(Sample{Kind: KindQuery, Name: "q", DurationMs: 1, At: time.Now()})
			}
		}()
	}
	wg.Wait()
	if c.TotalRecorded() != 2000 {
		t.Errorf("TotalRecorded = %d, want 2000", c.TotalRecorded())
	}
}

// TestCollector_Nil ignores records on a nil collector.
func TestCollector_Nil(t *testing.T) {
	var c *Collector
	c.Record(Sample{Kind: KindQuery})
	if c.TotalRecorded() != 0 {
		t.Error("nil collector should report zero")
	}
}
