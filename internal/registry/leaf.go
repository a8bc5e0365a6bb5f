// Package registry holds the concurrent in-memory mappings each node
// keeps: a leaf's file registry, a super-peer's leaf registry, and a
// super-peer's bounded message history. None of it is persisted; the
// registry is process-memory only.
package registry

import (
	"sync"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

type leafEntry struct {
	info        wire.FileInfo
	lastChecked time.Time // zero value means "never checked"
}

// LeafRegistry is a leaf node's file_name -> FileInfo mapping. All
// mutations are single-key operations; the filesystem watcher and the CLI
// are the only writers for owned files.
type LeafRegistry struct {
	mu      sync.RWMutex
	entries map[string]*leafEntry
}

// NewLeafRegistry returns an empty leaf registry.
func NewLeafRegistry() *LeafRegistry {
	return &LeafRegistry{entries: make(map[string]*leafEntry)}
}

// Put inserts or overwrites the registry entry for fi.Name.
func (r *LeafRegistry) Put(fi wire.FileInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fi.Name] = &leafEntry{info: fi}
}

// Get returns the FileInfo registered for name, if any.
func (r *LeafRegistry) Get(name string) (wire.FileInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return wire.FileInfo{}, false
	}
	return e.info, true
}

// Remove deletes the registry entry for name, returning whether one
// existed.
func (r *LeafRegistry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// BumpVersion increments the version of an existing entry by one and
// returns the updated FileInfo. Used on a filesystem modify event and on
// an origin leaf's own in-memory bookkeeping.
func (r *LeafRegistry) BumpVersion(name string) (wire.FileInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return wire.FileInfo{}, false
	}
	e.info.Version++
	return e.info, true
}

// IsOrigin reports whether the leaf at self originates the named file,
// i.e. the registry entry's origin address equals self.
func (r *LeafRegistry) IsOrigin(name string, self wire.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.info.Origin == self
}

// Names returns a snapshot of every registered file name. Safe to iterate
// after the lock is released (e.g. by the consistency checker's periodic
// tick) since each name is then looked up again under its own lock.
func (r *LeafRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// LastChecked returns the time of the most recent successful status
// exchange for name, and whether one has ever happened.
func (r *LeafRegistry) LastChecked(name string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || e.lastChecked.IsZero() {
		return time.Time{}, false
	}
	return e.lastChecked, true
}

// SetLastChecked records now as the time of the most recent successful
// status exchange for name. A no-op if name is no longer registered (it
// may have been deregistered concurrently by an invalidate).
func (r *LeafRegistry) SetLastChecked(name string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.lastChecked = now
	}
}
