package registry

import (
	"container/list"
	"sync"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// HistoryLimit is H in the spec: the super-peer message history never
// holds more than this many entries. On overflow the oldest entry is
// evicted.
const HistoryLimit = 50

// History is a super-peer's bounded, ordered message_id -> return_address
// mapping, used for dedup on query/invalidate floods and for reverse-path
// routing of queryhit replies. Inserts, contains-checks, and bounded
// eviction are atomic with respect to each other.
type History struct {
	mu      sync.Mutex
	order   *list.List // front = oldest, back = newest
	entries map[string]*list.Element
}

type historyEntry struct {
	id         string
	returnAddr wire.Address
}

// NewHistory returns an empty message history.
func NewHistory() *History {
	return &History{
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// RecordIfAbsent inserts (id -> returnAddr) if id has not been seen
// before, evicting the oldest entry if the history is at capacity. It
// reports whether the insert happened (false means id was already
// recorded, and the caller should drop the message as a duplicate).
func (h *History) RecordIfAbsent(id string, returnAddr wire.Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[id]; ok {
		return false
	}

	if h.order.Len() >= HistoryLimit {
		oldest := h.order.Front()
		if oldest != nil {
			h.order.Remove(oldest)
			delete(h.entries, oldest.Value.(*historyEntry).id)
		}
	}

	el := h.order.PushBack(&historyEntry{id: id, returnAddr: returnAddr})
	h.entries[id] = el
	return true
}

// Lookup returns the return address recorded for id, for reverse-path
// routing of a queryhit. ok is false if the entry was never recorded or
// has since been evicted.
func (h *History) Lookup(id string) (wire.Address, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	el, ok := h.entries[id]
	if !ok {
		return wire.Address{}, false
	}
	return el.Value.(*historyEntry).returnAddr, true
}

// Len reports the current number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.order.Len()
}
