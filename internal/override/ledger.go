// Package override holds the short-lived set of edges whose isolated state is
// pinned ahead of snapshot confirmation.
//
// An entry is created when a pushed change reports an edge moving to
// isolated. It is removed when the next snapshot that carries the same edge id
// is observed, whatever status that snapshot reports, or when the ledger is
// reset. Entries do not expire on wall-clock time unless MaxAge is set.
//
// A Ledger is owned by a single goroutine and is not safe for concurrent use.
package override

import (
	"sort"
	"time"

	"hydrotwin/internal/domain"
)

// Entry is one pinned edge
type Entry struct {
	EdgeID    string            `json:"edge_id"`
	EdgeName  string            `json:"edge_name,omitempty"`
	Status    domain.EdgeStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// Ledger maps edge id to its pinned entry
type Ledger struct {
	entries map[string]Entry
	// MaxAge bounds how long an unconfirmed entry survives; zero disables it
	MaxAge time.Duration
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{entries: make(map[string]Entry)}
}

// Put inserts or refreshes the entry for an edge
func (l *Ledger) Put(edgeID, edgeName string, at time.Time) Entry {
	entry := Entry{
		EdgeID:    edgeID,
		EdgeName:  edgeName,
		Status:    domain.EdgeStatusIsolated,
		CreatedAt: at,
	}
	l.entries[edgeID] = entry
	return entry
}

// Has reports whether the edge is pinned
func (l *Ledger) Has(edgeID string) bool {
	_, ok := l.entries[edgeID]
	return ok
}

// Get returns the entry for an edge
func (l *Ledger) Get(edgeID string) (Entry, bool) {
	e, ok := l.entries[edgeID]
	return e, ok
}

// Len returns the number of pinned edges
func (l *Ledger) Len() int {
	return len(l.entries)
}

// IDs returns the pinned edge ids in sorted order
func (l *Ledger) IDs() []string {
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns a copy of all entries sorted by edge id
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, id := range l.IDs() {
		out = append(out, l.entries[id])
	}
	return out
}

// Confirm removes every entry whose edge appears in the snapshot and returns
// the removed ids. The snapshot's status for the edge is not consulted: an
// isolated report corroborates the push, any other report refutes it, and in
// both cases the authoritative value takes over.
func (l *Ledger) Confirm(snap *domain.Snapshot) []string {
	if snap == nil || len(l.entries) == 0 {
		return nil
	}

	var removed []string
	for _, edge := range snap.Edges {
		if _, ok := l.entries[edge.ID]; ok {
			delete(l.entries, edge.ID)
			removed = append(removed, edge.ID)
		}
	}
	sort.Strings(removed)
	return removed
}

// Expire drops entries older than MaxAge and returns their ids. It is a no-op
// when MaxAge is zero.
func (l *Ledger) Expire(now time.Time) []string {
	if l.MaxAge <= 0 {
		return nil
	}

	var expired []string
	for id, e := range l.entries {
		if now.Sub(e.CreatedAt) >= l.MaxAge {
			delete(l.entries, id)
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Reset clears every entry and returns how many were removed
func (l *Ledger) Reset() int {
	n := len(l.entries)
	l.entries = make(map[string]Entry)
	return n
}
