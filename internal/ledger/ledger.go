// Package ledger holds pending wagers until they are settled or forfeited.
//
// A Ledger is not safe for concurrent use; the engine goroutine owns it.
package ledger

import (
	"slices"

	"github.com/rickgao/updown/internal/model"
)

// Ledger stores pending wagers grouped by owning session.
type Ledger struct {
	bySession map[string][]model.Wager
	count     int
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{bySession: make(map[string][]model.Wager)}
}

// Add appends w to its session's pending list.
func (l *Ledger) Add(w model.Wager) {
	l.bySession[w.SessionID] = append(l.bySession[w.SessionID], w)
	l.count++
}

// Drain removes and returns every pending wager in placement order.
func (l *Ledger) Drain() []model.Wager {
	if l.count == 0 {
		return nil
	}
	out := make([]model.Wager, 0, l.count)
	for _, ws := range l.bySession {
		out = append(out, ws...)
	}
	slices.SortFunc(out, func(a, b model.Wager) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	clear(l.bySession)
	l.count = 0
	return out
}

// RemoveSession drops and returns the pending wagers of id.
func (l *Ledger) RemoveSession(id string) []model.Wager {
	ws, ok := l.bySession[id]
	if !ok {
		return nil
	}
	delete(l.bySession, id)
	l.count -= len(ws)
	return ws
}

// Pending returns a copy of the pending wagers of id.
func (l *Ledger) Pending(id string) []model.Wager {
	return slices.Clone(l.bySession[id])
}

// Len returns the total number of pending wagers.
func (l *Ledger) Len() int {
	return l.count
}
