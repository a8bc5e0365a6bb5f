package registry

import (
	"sync"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// fileHolders is the set of leaf addresses advertising one file name. The
// set itself is not concurrent; every mutation holds this entry's own
// lock, with a separate top-level lock guarding the name-to-entry map
// itself.
type fileHolders struct {
	mu      sync.Mutex
	holders map[wire.Address]struct{}
}

// SuperPeerRegistry is a super-peer's file_name -> set-of-leaf-addresses
// mapping. A leaf address appears in the set iff that leaf has announced
// (register) and not yet retracted (deregister, or disconnect) that file.
// An empty set causes the key to be removed.
type SuperPeerRegistry struct {
	mu    sync.RWMutex
	files map[string]*fileHolders
}

// NewSuperPeerRegistry returns an empty super-peer file registry.
func NewSuperPeerRegistry() *SuperPeerRegistry {
	return &SuperPeerRegistry{files: make(map[string]*fileHolders)}
}

func (r *SuperPeerRegistry) getOrCreate(name string) *fileHolders {
	r.mu.Lock()
	defer r.mu.Unlock()
	fh, ok := r.files[name]
	if ok {
		return fh
	}
	fh = &fileHolders{holders: make(map[wire.Address]struct{})}
	r.files[name] = fh
	return fh
}

// Register records that leaf advertises name.
func (r *SuperPeerRegistry) Register(name string, leaf wire.Address) {
	fh := r.getOrCreate(name)
	fh.mu.Lock()
	fh.holders[leaf] = struct{}{}
	fh.mu.Unlock()
}

// Deregister retracts leaf's advertisement of name. If the holder set
// becomes empty, the key is removed from the registry entirely.
func (r *SuperPeerRegistry) Deregister(name string, leaf wire.Address) {
	r.mu.RLock()
	fh, ok := r.files[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	fh.mu.Lock()
	delete(fh.holders, leaf)
	empty := len(fh.holders) == 0
	fh.mu.Unlock()

	if empty {
		r.mu.Lock()
		if fh2, ok := r.files[name]; ok {
			fh2.mu.Lock()
			stillEmpty := len(fh2.holders) == 0
			fh2.mu.Unlock()
			if stillEmpty {
				delete(r.files, name)
			}
		}
		r.mu.Unlock()
	}
}

// DeregisterLeaf retracts every advertisement made by leaf, as done when a
// leaf's persistent connection closes. It returns the file names that
// were affected.
func (r *SuperPeerRegistry) DeregisterLeaf(leaf wire.Address) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	r.mu.RUnlock()

	var affected []string
	for _, name := range names {
		r.mu.RLock()
		fh, ok := r.files[name]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		fh.mu.Lock()
		_, had := fh.holders[leaf]
		delete(fh.holders, leaf)
		empty := len(fh.holders) == 0
		fh.mu.Unlock()
		if !had {
			continue
		}
		affected = append(affected, name)
		if empty {
			r.mu.Lock()
			if fh2, ok := r.files[name]; ok {
				fh2.mu.Lock()
				stillEmpty := len(fh2.holders) == 0
				fh2.mu.Unlock()
				if stillEmpty {
					delete(r.files, name)
				}
			}
			r.mu.Unlock()
		}
	}
	return affected
}

// Holders returns the leaves currently advertising name, in registry
// iteration order (no ordering is guaranteed across calls).
func (r *SuperPeerRegistry) Holders(name string) []wire.Address {
	r.mu.RLock()
	fh, ok := r.files[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	out := make([]wire.Address, 0, len(fh.holders))
	for addr := range fh.holders {
		out = append(out, addr)
	}
	return out
}

// HoldersExcept is Holders with one address filtered out, used by the
// invalidation propagator, which must notify every holder other than the
// leaf that sent the invalidate.
func (r *SuperPeerRegistry) HoldersExcept(name string, exclude wire.Address) []wire.Address {
	all := r.Holders(name)
	out := make([]wire.Address, 0, len(all))
	for _, a := range all {
		if a != exclude {
			out = append(out, a)
		}
	}
	return out
}
