// Package ranking maintains per-symbol return statistics fed by a tick
// stream and a periodically rebuilt leaderboard.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultResortEvery is the number of updates between leaderboard rebuilds.
const DefaultResortEvery = 1000

// ErrInvalidPrice is returned for prices that cannot anchor a return
// computation (zero, negative or non-finite).
var ErrInvalidPrice = errors.New("invalid price")

// Table maps symbols to their Entry and caches a sorted snapshot.
// A Table belongs to a single day's run and is not safe for concurrent use.
type Table struct {
	entries  map[string]*Entry
	snapshot []*Entry
	pending  int // updates since last resort
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Update records a tick. The entry is created on first sight of symbol.
// Invalid prices are rejected without touching the table.
func (t *Table) Update(symbol string, price float64, ts int64) error {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: %s at %d: %v", ErrInvalidPrice, symbol, ts, price)
	}

	if e, ok := t.entries[symbol]; ok {
		e.update(price, ts)
	} else {
		t.entries[symbol] = newEntry(symbol, price, ts)
	}
	t.pending++
	return nil
}

// ShouldResort reports whether enough updates accumulated to rebuild the
// leaderboard. It does not modify the table.
func (t *Table) ShouldResort(threshold int) bool {
	return t.pending >= threshold
}

// Resort rebuilds the snapshot in descending CurrentPnL order and resets the
// update counter. Ties are broken by symbol so runs are reproducible.
func (t *Table) Resort() {
	snap := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		snap = append(snap, e)
	}
	sort.Slice(snap, func(i, j int) bool {
		if snap[i].CurrentPnL != snap[j].CurrentPnL {
			return snap[i].CurrentPnL > snap[j].CurrentPnL
		}
		return snap[i].Symbol < snap[j].Symbol
	})
	t.snapshot = snap
	t.pending = 0
}

// TopN returns the first n entries of the last snapshot. The snapshot may be
// stale relative to the latest updates until the next Resort.
func (t *Table) TopN(n int) []*Entry {
	if n > len(t.snapshot) {
		n = len(t.snapshot)
	}
	if n <= 0 {
		return nil
	}
	return t.snapshot[:n:n]
}

// Snapshot returns the whole last-built leaderboard.
func (t *Table) Snapshot() []*Entry {
	return t.snapshot[:len(t.snapshot):len(t.snapshot)]
}

// Entry returns the live entry for symbol.
func (t *Table) Entry(symbol string) (*Entry, bool) {
	e, ok := t.entries[symbol]
	return e, ok
}

// LastPrice returns the latest price of symbol, or false if it was never seen.
func (t *Table) LastPrice(symbol string) (float64, bool) {
	e, ok := t.entries[symbol]
	if !ok {
		return 0, false
	}
	return e.LastPrice, true
}

// Len returns the number of tracked symbols.
func (t *Table) Len() int {
	return len(t.entries)
}
