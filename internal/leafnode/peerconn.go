package leafnode

import (
	"bufio"
	"context"
	"net"
	"os"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// handlePeerConnection dispatches one-shot inbound connections on the
// leaf's own listener: obtain requests from downloaders, status probes
// from pull-model replicas, and invalidate deliveries from the
// responsible super-peer. Unlike the super-peer's inbound connections,
// a leaf never needs to classify the caller: every frame it can
// receive here is handled identically regardless of who sent it.
func (n *Node) handlePeerConnection(ctx context.Context, conn net.Conn, r *bufio.Reader, peer wire.Address) {
	line, err := transport.ReadLine(r)
	if err != nil {
		return
	}
	cmd, rest, ok := wire.SplitCommand(line)
	if !ok {
		n.Log.Warnf("empty frame from %s", peer)
		return
	}

	switch cmd {
	case wire.CmdObtain:
		n.serveObtain(conn, rest)
	case wire.CmdStatus:
		n.serveStatus(conn, rest)
	case wire.CmdInvalidate:
		n.handleInvalidate(rest)
	default:
		n.Log.Warnf("unrecognized frame %q from %s", cmd, peer)
	}
}

// serveStatus answers a pull-model consistency probe against a file this
// leaf originates: deleted if the name is no longer registered here,
// otherwise uptodate or outdated by comparing the caller's version
// against the current one.
func (n *Node) serveStatus(conn net.Conn, rest string) {
	probe, err := wire.ParseFileInfo(rest)
	if err != nil {
		n.Log.Warnf("malformed status frame: %v", err)
		return
	}

	current, ok := n.Registry.Get(probe.Name)
	if !ok {
		_ = transport.SendLine(conn, wire.StatusDeleted)
		return
	}
	if current.Version == probe.Version {
		_ = transport.SendLine(conn, wire.StatusUpToDate)
		return
	}
	_ = transport.SendLine(conn, wire.StatusOutdated)
}

// handleInvalidate drops the local replica named by m: the registry
// entry and the file under downloads/ are both removed. By protocol
// construction a leaf never receives an invalidate for a file it
// originates, so owned/ is never touched here.
func (n *Node) handleInvalidate(rest string) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed invalidate frame: %v", err)
		return
	}
	name := m.FileInfo.Name
	if !n.Registry.Remove(name) {
		return
	}
	if err := os.Remove(n.downloadPath(name)); err != nil && !os.IsNotExist(err) {
		n.Log.Warnf("invalidate %s: remove replica: %v", name, err)
	} else {
		n.Log.Infof("invalidated replica %s", name)
	}
}
