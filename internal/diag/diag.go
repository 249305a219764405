// Package diag keeps a bounded in-memory log of per-check outcomes for the
// diagnostics API, newest first.
package diag

import (
	"sync"

	"github.com/aloglu/centsible/internal/models"
)

// DefaultCapacity bounds the ring when no explicit capacity is given.
const DefaultCapacity = 2000

// Log is a mutex-guarded ring of check records. Oldest entries fall off
// once the capacity is reached.
type Log struct {
	mu      sync.Mutex
	entries []models.CheckRecord
	cap     int
}

// NewLog returns a Log holding at most capacity records.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{cap: capacity}
}

// Add records one check outcome at the head of the ring.
func (l *Log) Add(rec models.CheckRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, models.CheckRecord{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = rec
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
// failedOnly keeps only records with OK == false.
func (l *Log) Recent(limit int, failedOnly bool) []models.CheckRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.CheckRecord, 0, len(l.entries))
	for _, rec := range l.entries {
		if failedOnly && rec.OK {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len reports the number of stored records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot copies the full ring for persistence.
func (l *Log) Snapshot() []models.CheckRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.CheckRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// Seed replaces the ring contents, trimming to capacity. Used when loading
// persisted diagnostics at startup.
func (l *Log) Seed(recs []models.CheckRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(recs) > l.cap {
		recs = recs[:l.cap]
	}
	l.entries = make([]models.CheckRecord, len(recs))
	copy(l.entries, recs)
}
