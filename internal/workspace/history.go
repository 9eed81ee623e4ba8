package workspace

import "sync"

// Ledger is the bounded, append-only record of closed sessions. Entries are
// created exactly once when a tab transitions to closed and never mutated
// afterwards; they leave the ledger only through explicit eviction,
// bulk-clear, or the size cap (oldest-first).
type Ledger struct {
	mu      sync.RWMutex
	entries []HistoryEntry // oldest first
	limit   int
}

// NewLedger creates a ledger keeping at most limit entries. A non-positive
// limit falls back to 100.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = 100
	}
	return &Ledger{limit: limit}
}

// Append records a closed session, evicting the oldest entries when the
// cap is exceeded.
func (l *Ledger) Append(entry HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.limit; overflow > 0 {
		l.entries = append([]HistoryEntry(nil), l.entries[overflow:]...)
	}
}

// List returns all entries, newest first.
func (l *Ledger) List() []HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]HistoryEntry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Get looks up an entry by its ledger ID.
func (l *Ledger) Get(id string) (HistoryEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// Evict removes one entry by ID.
func (l *Ledger) Evict(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
