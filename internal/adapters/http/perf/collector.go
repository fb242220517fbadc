package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default number of samples kept.
const DefaultRingSize = 10000

// Kind separates HTTP request samples from store query samples.
type Kind uint8

const (
	KindRequest Kind = iota
	KindQuery
	KindPush // live subscription emission
)

// Sample is one timed operation.
type Sample struct {
	Kind       Kind
	Name       string // "GET /api/conversations", "QueryContext", "watch_messages"
	StatusCode int    // HTTP only
	DurationMs float64
	At         time.Time
}

// Collector keeps the most recent samples in a ring. Aggregation is
// deferred to Snapshot so Record stays cheap on hot paths.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	total   atomic.Int64
}

// NewCollector creates a collector holding up to size samples.
// PRE: size > 0 (non-positive sizes fall back to DefaultRingSize)
// POST: Returns an empty collector
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{samples: make([]Sample, size)}
}

// Record stores s, overwriting the oldest sample when full.
// Safe for concurrent use. A nil collector ignores samples.
func (c *Collector) Record(s Sample) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.samples[c.next] = s
	c.next = (c.next + 1) % len(c.samples)
	c.mu.Unlock()
	c.total.Add(1)
}

// TotalRecorded returns how many samples were ever recorded.
func (c *Collector) TotalRecorded() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Stat aggregates the samples of one name.
type Stat struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	TotalMs float64 `json:"totalMs"`
}

// Snapshot is the aggregated view served on the admin perf endpoint.
type Snapshot struct {
	TotalRecorded  int64   `json:"totalRecorded"`
	RequestP50Ms   float64 `json:"requestP50Ms"`
	RequestP95Ms   float64 `json:"requestP95Ms"`
	RequestP99Ms   float64 `json:"requestP99Ms"`
	SlowestPaths   []Stat  `json:"slowestPaths"`
	SlowestQueries []Stat  `json:"slowestQueries"`
	SlowestPushes  []Stat  `json:"slowestPushes"`
}

// Snapshot aggregates samples recorded at or after since.
// PRE: topN > 0
// POST: Each Slowest list holds at most topN entries sorted by average desc
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Sample, len(c.samples))
	copy(buf, c.samples)
	c.mu.Unlock()

	byKind := map[Kind]map[string]*Stat{
		KindRequest: {},
		KindQuery:   {},
		KindPush:    {},
	}
	var requestMs []float64

	for _, s := range buf {
		if s.At.IsZero() || s.At.Before(since) {
			continue
		}
		stats, ok := byKind[s.Kind]
		if !ok {
			continue
		}
		if s.Kind == KindRequest {
			requestMs = append(requestMs, s.DurationMs)
		}
		st := stats[s.Name]
		if st == nil {
			st = &Stat{Name: s.Name}
			stats[s.Name] = st
		}
		st.Count++
		st.TotalMs += s.DurationMs
		st.MaxMs = math.Max(st.MaxMs, s.DurationMs)
	}

	snap := Snapshot{
		TotalRecorded:  c.TotalRecorded(),
		SlowestPaths:   slowest(byKind[KindRequest], topN),
		SlowestQueries: slowest(byKind[KindQuery], topN),
		SlowestPushes:  slowest(byKind[KindPush], topN),
	}
	if len(requestMs) > 0 {
		sort.Float64s(requestMs)
		snap.RequestP50Ms = percentile(requestMs, 50)
		snap.RequestP95Ms = percentile(requestMs, 95)
		snap.RequestP99Ms = percentile(requestMs, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func slowest(stats map[string]*Stat, n int) []Stat {
	out := make([]Stat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgMs == out[j].AvgMs {
			return out[i].Name < out[j].Name
		}
		return out[i].AvgMs > out[j].AvgMs
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Since converts a start time into milliseconds for a Sample.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
