// internal/state/history.go
package state

import (
	"sync"

	"github.com/user/framerelay/internal/types"
)

// History is a bounded in-memory ring of recent pipeline records. Writers
// hand in live records; readers always get clones, so the pipeline can keep
// mutating its copy.
type History struct {
	mu      sync.RWMutex
	limit   int
	order   []types.EventID
	records map[types.EventID]*types.Record
}

// NewHistory creates a ring holding at most limit records.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1
	}
	return &History{
		limit:   limit,
		records: make(map[types.EventID]*types.Record),
	}
}

// Put inserts or refreshes a record. A new record evicts the oldest once
// the ring is full; refreshing keeps the original arrival position.
func (h *History) Put(record *types.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := record.Event.ID
	if _, ok := h.records[id]; !ok {
		h.order = append(h.order, id)
		for len(h.order) > h.limit {
			delete(h.records, h.order[0])
			h.order = h.order[1:]
		}
	}
	h.records[id] = record.Clone()
}

// Get returns the record for an event id.
func (h *History) Get(id types.EventID) (*types.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	record, ok := h.records[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Recent returns up to limit records, newest arrival first. limit <= 0
// returns everything in the ring.
func (h *History) Recent(limit int) []*types.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*types.Record, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(out) < n; i-- {
		if record, ok := h.records[h.order[i]]; ok {
			out = append(out, record.Clone())
		}
	}
	return out
}

// Latest returns the newest record that reached a terminal stage.
func (h *History) Latest() (*types.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.order) - 1; i >= 0; i-- {
		if record, ok := h.records[h.order[i]]; ok && record.Terminal() {
			return record.Clone(), true
		}
	}
	return nil, false
}
