// Package superpeernode implements the super-peer: it indexes the files
// its leaves hold, routes queries across a static backbone by controlled
// flooding, and propagates invalidations.
package superpeernode

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/obs"
	"github.com/n0rdlicht/gnutellafs/internal/registry"
	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// leafSessionIdleDeadline is renewed before every read on a leaf's
// persistent session so a quiet-but-healthy session never times out.
const leafSessionIdleDeadline = 10 * time.Minute

// leafSession tracks one persistent leaf connection so a disconnect can
// cascade deregistration of every file that leaf advertised. writeMu
// serializes every write on conn: the session's own read loop writes
// register/deregister replies, while other goroutines delivering a
// queryhit may concurrently push a line down the same connection.
type leafSession struct {
	conn    net.Conn
	addr    wire.Address
	writeMu sync.Mutex
}

// Node is one super-peer.
type Node struct {
	Addr      wire.Address
	Neighbors []wire.Address
	Leaves    []wire.Address
	Registry  *registry.SuperPeerRegistry
	History   *registry.History
	Log       *obs.Logger

	leavesMu sync.Mutex
	leafSet  map[wire.Address]bool

	sessMu   sync.Mutex
	sessions map[wire.Address]*leafSession

	listener *transport.Listener
}

// New constructs a super-peer node for the given backbone neighbors and
// declared leaves.
func New(addr wire.Address, neighbors, leaves []wire.Address) *Node {
	leafSet := make(map[wire.Address]bool, len(leaves))
	for _, l := range leaves {
		leafSet[l] = true
	}
	return &Node{
		Addr:      addr,
		Neighbors: neighbors,
		Leaves:    leaves,
		Registry:  registry.NewSuperPeerRegistry(),
		History:   registry.NewHistory(),
		Log:       obs.New(addr.String()),
		leafSet:   leafSet,
		sessions:  make(map[wire.Address]*leafSession),
	}
}

func (n *Node) isNeighbor(addr wire.Address) bool {
	for _, nb := range n.Neighbors {
		if nb == addr {
			return true
		}
	}
	return false
}

func (n *Node) isLeaf(addr wire.Address) bool {
	n.leavesMu.Lock()
	defer n.leavesMu.Unlock()
	return n.leafSet[addr]
}

// Run binds the listener and serves until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	ln, err := transport.Listen(n.Addr, n.Log)
	if err != nil {
		return err
	}
	n.listener = ln

	ln.Serve(ctx, n.handleConnection)
	ln.Wait()
	n.Log.Sync()
	return nil
}

// handleConnection classifies the remote party by its handshake address
// and dispatches accordingly. Neighbor exchanges are single-shot:
// one request, then return (the caller closes). Leaf sessions loop until
// EOF, and on close cascade-deregister every file that leaf advertised.
func (n *Node) handleConnection(ctx context.Context, conn net.Conn, r *bufio.Reader, peer wire.Address) {
	switch {
	case n.isNeighbor(peer):
		n.handleNeighborFrame(conn, r, peer)
	case n.isLeaf(peer):
		n.runLeafSession(ctx, conn, r, peer)
	default:
		n.Log.Warnf("rejecting connection from unrecognized party %s", peer)
	}
}

// handleNeighborFrame reads and dispatches exactly one frame from an
// inter-super-peer connection before returning; the caller is expected to
// close immediately after.
func (n *Node) handleNeighborFrame(conn net.Conn, r *bufio.Reader, peer wire.Address) {
	line, err := transport.ReadLine(r)
	if err != nil {
		return
	}
	cmd, rest, ok := wire.SplitCommand(line)
	if !ok {
		n.Log.Warnf("empty frame from neighbor %s", peer)
		return
	}
	n.dispatchFrame(cmd, rest, conn, peer, false)
}

// runLeafSession loops reading frames from a persistent leaf connection
// until EOF or error, then cascades a deregister for every file the leaf
// advertised.
func (n *Node) runLeafSession(ctx context.Context, conn net.Conn, r *bufio.Reader, leaf wire.Address) {
	n.sessMu.Lock()
	n.sessions[leaf] = &leafSession{conn: conn, addr: leaf}
	n.sessMu.Unlock()

	defer func() {
		n.sessMu.Lock()
		delete(n.sessions, leaf)
		n.sessMu.Unlock()

		affected := n.Registry.DeregisterLeaf(leaf)
		for _, name := range affected {
			n.Log.Infof("leaf %s disconnected, deregistered %s", leaf, name)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetDeadline(time.Now().Add(leafSessionIdleDeadline))
		line, err := transport.ReadLine(r)
		if err != nil {
			return
		}
		cmd, rest, ok := wire.SplitCommand(line)
		if !ok {
			continue
		}
		n.dispatchFrame(cmd, rest, conn, leaf, true)
	}
}

// sessionFor returns the session tracking a currently-connected leaf.
func (n *Node) sessionFor(leaf wire.Address) (*leafSession, bool) {
	n.sessMu.Lock()
	defer n.sessMu.Unlock()
	s, ok := n.sessions[leaf]
	return s, ok
}

// writeLine serializes one write of line to s's connection against any
// other goroutine writing to the same persistent leaf session.
func (s *leafSession) writeLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return transport.SendLine(s.conn, line)
}
