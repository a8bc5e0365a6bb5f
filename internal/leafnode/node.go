// Package leafnode implements the leaf peer: it owns files on local
// disk, serves them to other peers, and maintains a persistent session
// with exactly one super-peer.
package leafnode

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/config"
	"github.com/n0rdlicht/gnutellafs/internal/obs"
	"github.com/n0rdlicht/gnutellafs/internal/registry"
	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

const (
	// OwnedDir and DownloadsDir are the two subtrees under a leaf's root
	// directory: owned/ is watched and authoritative, downloads/ holds
	// replicas and is mutated only by protocol actions.
	OwnedDir     = "owned"
	DownloadsDir = "downloads"

	// TTLDefault is the hop budget given to a freshly originated query or
	// invalidate.
	TTLDefault = 10

	// ConsistencyPeriod is the pull-model checker's tick interval.
	ConsistencyPeriod = 30 * time.Second
)

// Node is one leaf peer.
type Node struct {
	Addr       wire.Address
	Root       string
	SuperPeer  wire.Address
	Model      config.Model
	Registry   *registry.LeafRegistry
	Log        *obs.Logger

	seq int64 // message_id sequence counter, incremented at every origination

	dlMu   sync.Mutex // the leaf's single download_lock
	dlSeen map[string]bool

	superConn    net.Conn
	superReader  *bufio.Reader
	superReplyCh chan string
	superMu      sync.Mutex // serializes writes on the persistent super-peer session

	listener *transport.Listener
}

// New constructs a leaf node rooted at root, connecting to superPeer under
// the given consistency model. owned/ and downloads/ are created if
// absent.
func New(addr wire.Address, root string, superPeer wire.Address, model config.Model) (*Node, error) {
	for _, sub := range []string{OwnedDir, DownloadsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("leafnode: create %s: %w", sub, err)
		}
	}

	return &Node{
		Addr:      addr,
		Root:      root,
		SuperPeer: superPeer,
		Model:     model,
		Registry:  registry.NewLeafRegistry(),
		Log:       obs.New(addr.String()),
		dlSeen:    make(map[string]bool),
	}, nil
}

func (n *Node) ownedPath(name string) string    { return filepath.Join(n.Root, OwnedDir, name) }
func (n *Node) downloadPath(name string) string { return filepath.Join(n.Root, DownloadsDir, name) }

// OwnedFilePath and DownloadedFilePath expose the two directory
// conventions to callers outside the package (CLI scripting, tests)
// without letting them reach into Root/OwnedDir/DownloadsDir directly.
func (n *Node) OwnedFilePath(name string) string      { return n.ownedPath(name) }
func (n *Node) DownloadedFilePath(name string) string { return n.downloadPath(name) }

// nextMessageID allocates the next node-unique message id for an
// origination at this leaf.
func (n *Node) nextMessageID() string {
	seq := atomic.AddInt64(&n.seq, 1)
	return wire.NextMessageID(n.Addr, seq)
}

// ScanDirectories populates the registry from the contents of owned/ and
// downloads/ at startup. Files under owned/ are registered as version-1
// originals; files under downloads/ with no recoverable metadata are
// logged as unregistered orphans rather than guessed at, since a
// replica's true origin and version cannot be inferred from the
// filesystem alone, and the registry itself is process-memory only.
func (n *Node) ScanDirectories() error {
	ownedEntries, err := os.ReadDir(filepath.Join(n.Root, OwnedDir))
	if err != nil {
		return fmt.Errorf("leafnode: scan owned: %w", err)
	}
	for _, e := range ownedEntries {
		if e.IsDir() {
			continue
		}
		n.Registry.Put(wire.FileInfo{Name: e.Name(), Origin: n.Addr, Version: 1, Valid: true})
	}

	downloadEntries, err := os.ReadDir(filepath.Join(n.Root, DownloadsDir))
	if err != nil {
		return fmt.Errorf("leafnode: scan downloads: %w", err)
	}
	for _, e := range downloadEntries {
		if e.IsDir() {
			continue
		}
		if _, ok := n.Registry.Get(e.Name()); !ok {
			n.Log.Warnf("orphaned replica %q in downloads/ with no registry metadata; leaving unregistered", e.Name())
		}
	}
	return nil
}

// Run starts every background task (persistent super-peer session,
// inbound listener, filesystem watcher, and, in pull mode only, the
// consistency checker) and blocks until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	ln, err := transport.Listen(n.Addr, n.Log)
	if err != nil {
		return err
	}
	n.listener = ln

	if err := n.connectSuperPeer(); err != nil {
		ln.Close()
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ln.Serve(ctx, n.handlePeerConnection)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		n.runSuperPeerSession(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := n.watchOwned(ctx); err != nil {
			n.Log.Errorf("filesystem watcher stopped: %v", err)
		}
	}()

	if n.Model.IsPull() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.runConsistencyChecker(ctx)
		}()
	}

	<-ctx.Done()
	ln.Close()
	if n.superConn != nil {
		n.superConn.Close()
	}
	ln.Wait()
	wg.Wait()
	n.Log.Sync()
	return nil
}
