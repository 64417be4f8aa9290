// Package observability provides operation statistics tracking for
// performance monitoring and benchmark reporting.
package observability

import (
	"sort"
	"sync"
	"time"
)

// OpStats tracks per-operation counters for a warehouse instance.
type OpStats struct {
	mu  sync.RWMutex
	ops map[string]*OpRecord
}

// OpRecord holds the accumulated counters for one operation kind.
type OpRecord struct {
	Op            string
	Calls         int64
	Rows          int64
	Partitions    int64
	TotalDuration time.Duration
	LastSeen      time.Time
}

// AvgDuration returns the mean duration per call.
func (r OpRecord) AvgDuration() time.Duration {
	if r.Calls == 0 {
		return 0
	}
	return r.TotalDuration / time.Duration(r.Calls)
}

// NewOpStats creates a new operation statistics tracker.
func NewOpStats() *OpStats {
	return &OpStats{ops: make(map[string]*OpRecord)}
}

// Record accumulates one completed operation.
// op: the operation kind (e.g., "add", "query")
// rows: rows returned, written, or removed
// partitions: partitions touched by the operation
// This method is O(1) and thread-safe.
func (s *OpStats) Record(op string, rows, partitions int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.ops[op]
	if !exists {
		rec = &OpRecord{Op: op}
		s.ops[op] = rec
	}

	rec.Calls++
	rec.Rows += int64(rows)
	rec.Partitions += int64(partitions)
	rec.TotalDuration += d
	rec.LastSeen = time.Now()
}

// Get returns the counters for one operation kind.
func (s *OpStats) Get(op string) (OpRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.ops[op]
	if !ok {
		return OpRecord{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of all operation records, sorted by call count
// descending.
func (s *OpStats) Snapshot() []OpRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OpRecord, 0, len(s.ops))
	for _, rec := range s.ops {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Op < out[j].Op
	})
	return out
}

// Reset clears all counters.
func (s *OpStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = make(map[string]*OpRecord)
}
