// Package metrics keeps per-call timing and retry bookkeeping for the portal
// client. Entries live only while a request is in flight; the ledger is
// bounded by the number of concurrent calls.
package metrics

import (
	"sync"
	"time"
)

// Entry holds the timing and retry metadata of one logical call.
type Entry struct {
	CorrelationID string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Attempts      int
}

// Snapshot is a point-in-time copy of the ledger keyed by correlation id.
type Snapshot map[string]Entry

// Ledger maps correlation ids to in-flight call entries. Safe for concurrent
// use.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Entry
	clock   func() time.Time
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]*Entry),
		clock:   time.Now,
	}
}

// NewLedgerWithClock creates a Ledger with an injected clock for tests.
func NewLedgerWithClock(clock func() time.Time) *Ledger {
	return &Ledger{
		entries: make(map[string]*Entry),
		clock:   clock,
	}
}

// RecordStart inserts or overwrites the entry for correlationID, stamping
// the start time and the current attempt number.
func (l *Ledger) RecordStart(correlationID string, attempt int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[correlationID]; ok {
		e.Attempts = attempt
		return
	}
	l.entries[correlationID] = &Entry{
		CorrelationID: correlationID,
		StartTime:     l.clock(),
		Attempts:      attempt,
	}
}

// RecordEnd stamps the end time, computes the duration, removes the entry,
// and returns it. Read-once: a second call for the same id reports false.
func (l *Ledger) RecordEnd(correlationID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[correlationID]
	if !ok {
		return Entry{}, false
	}
	delete(l.entries, correlationID)
	e.EndTime = l.clock()
	e.Duration = e.EndTime.Sub(e.StartTime)
	return *e, true
}

// Remove deletes the entry for correlationID without stamping it. Used on
// failure paths so abandoned calls do not accumulate.
func (l *Ledger) Remove(correlationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, correlationID)
}

// Snapshot returns a shallow point-in-time copy without mutating the ledger.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(Snapshot, len(l.entries))
	for id, e := range l.entries {
		out[id] = *e
	}
	return out
}

// Clear empties the ledger unconditionally.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*Entry)
}

// Len returns the number of in-flight entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
