package leafnode

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// watchOwned follows filesystem changes under owned/ only: downloads/ is
// mutated solely by protocol actions (obtain, invalidate) and is never
// watched, so a replica landing there never re-triggers registration.
func (n *Node) watchOwned(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Join(n.Root, OwnedDir)
	if err := w.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			n.Log.Warnf("watcher error: %v", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			n.handleWatchEvent(ev)
		}
	}
}

func (n *Node) handleWatchEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)

	switch {
	case ev.Op.Has(fsnotify.Create):
		n.Register(wire.FileInfo{Name: name, Origin: n.Addr, Version: 1, Valid: true})

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		n.Deregister(name)

	case ev.Op.Has(fsnotify.Write):
		n.HandleModify(name)
	}
}

// HandleModify bumps the registry version for an owned file and, under
// push, floods an invalidate. It is the watcher's reaction to a write
// event, factored out so it can also be driven directly (e.g. by a test
// that modifies a file without a live fsnotify subscription).
func (n *Node) HandleModify(name string) {
	fi, ok := n.Registry.BumpVersion(name)
	if !ok {
		// a write to a file this node doesn't yet consider its own;
		// treat it the same as a fresh create.
		n.Register(wire.FileInfo{Name: name, Origin: n.Addr, Version: 1, Valid: true})
		return
	}
	if n.Model.IsPush() {
		n.emitInvalidate(fi)
	}
}
