package leafnode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// sessionIdleDeadline bounds how long the persistent super-peer session
// may sit with nothing to read before the connection is considered dead.
// It is renewed before every read so a quiet-but-healthy session never
// times out.
const sessionIdleDeadline = 10 * time.Minute

// connectSuperPeer opens the leaf's one persistent connection to its
// super-peer and performs the initiator handshake.
func (n *Node) connectSuperPeer() error {
	conn, r, err := transport.Dial(n.SuperPeer, n.Addr)
	if err != nil {
		return fmt.Errorf("leafnode: connect to super-peer: %w", err)
	}
	n.superConn = conn
	n.superReader = r
	n.superReplyCh = make(chan string, 1)
	return nil
}

// runSuperPeerSession is the single reader loop for the persistent
// super-peer connection. It multiplexes two kinds of inbound traffic on
// one serialized stream: synchronous status-code replies to this leaf's
// own register/deregister requests, and asynchronously pushed queryhit
// messages. Because the leaf only ever has one register/deregister
// request in flight at a time (superMu serializes writers, and the CLI
// issues commands one at a time), a single buffered reply channel is
// enough to route a plain status-code line back to its waiting sender
// without confusing it for a queryhit push.
func (n *Node) runSuperPeerSession(ctx context.Context) {
	for {
		_ = n.superConn.SetDeadline(time.Now().Add(sessionIdleDeadline))
		line, err := transport.ReadLine(n.superReader)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n.Log.Warnf("super-peer session closed: %v", err)
			return
		}

		cmd, rest, ok := wire.SplitCommand(line)
		if !ok {
			continue
		}

		if cmd == wire.CmdQueryHit {
			m, holder, err := wire.ParseQueryHit(rest)
			if err != nil {
				n.Log.Warnf("malformed queryhit from super-peer: %v", err)
				continue
			}
			go n.handleQueryHit(ctx, m, holder)
			continue
		}

		select {
		case n.superReplyCh <- line:
		default:
			n.Log.Warnf("dropped unexpected super-peer reply %q: no request in flight", line)
		}
	}
}

// sendRegistryOp writes a register or deregister frame and waits for the
// status-code reply (0 = success, >0 = failure reason). A registry-op
// failure is logged by the caller and otherwise ignored: the in-memory
// leaf registry is authoritative for this node regardless of what the
// super-peer reports.
func (n *Node) sendRegistryOp(cmd wire.Command, fi wire.FileInfo) (int, error) {
	n.superMu.Lock()
	defer n.superMu.Unlock()

	m := wire.Message{ID: n.nextMessageID(), TTL: TTLDefault, FileInfo: fi, Sender: n.Addr}
	if err := transport.SendLine(n.superConn, wire.FormatMessageFrame(cmd, m)); err != nil {
		return 0, fmt.Errorf("leafnode: send %s: %w", cmd, err)
	}

	select {
	case reply := <-n.superReplyCh:
		status, err := strconv.Atoi(reply)
		if err != nil {
			return 0, fmt.Errorf("leafnode: malformed %s reply %q: %w", cmd, reply, err)
		}
		return status, nil
	case <-time.After(transport.ConnDeadline):
		return 0, errors.New("leafnode: timed out waiting for registry-op reply")
	}
}

// sendFireAndForget writes a query or invalidate frame, which the
// protocol defines no direct reply for.
func (n *Node) sendFireAndForget(cmd wire.Command, m wire.Message) error {
	n.superMu.Lock()
	defer n.superMu.Unlock()
	return transport.SendLine(n.superConn, wire.FormatMessageFrame(cmd, m))
}

// Register announces ownership of fi to the super-peer and records it
// locally regardless of the super-peer's reply.
func (n *Node) Register(fi wire.FileInfo) {
	n.Registry.Put(fi)
	status, err := n.sendRegistryOp(wire.CmdRegister, fi)
	if err != nil {
		n.Log.Errorf("register %s: %v", fi.Name, err)
		return
	}
	if status != 0 {
		n.Log.Warnf("register %s rejected by super-peer: status %d", fi.Name, status)
	}
}

// Deregister retracts ownership of name: removes the local registry
// entry, informs the super-peer, and, under push, floods an
// invalidate.
func (n *Node) Deregister(name string) {
	fi, ok := n.Registry.Get(name)
	if !ok {
		return
	}
	n.Registry.Remove(name)

	status, err := n.sendRegistryOp(wire.CmdDeregister, fi)
	if err != nil {
		n.Log.Errorf("deregister %s: %v", name, err)
	} else if status != 0 {
		n.Log.Warnf("deregister %s rejected by super-peer: status %d", name, status)
	}

	if n.Model.IsPush() {
		n.emitInvalidate(fi)
	}
}

// emitInvalidate floods a fresh invalidate message for fi, under the push
// consistency model only.
func (n *Node) emitInvalidate(fi wire.FileInfo) {
	m := wire.Message{ID: n.nextMessageID(), TTL: TTLDefault, FileInfo: fi, Sender: n.Addr}
	if err := n.sendFireAndForget(wire.CmdInvalidate, m); err != nil {
		n.Log.Errorf("emit invalidate for %s: %v", fi.Name, err)
	}
}

// Search issues a query for name if it is not already present in the
// local registry.
func (n *Node) Search(name string) {
	if _, ok := n.Registry.Get(name); ok {
		n.Log.Infof("search %s: already present locally", name)
		return
	}
	m := wire.Message{
		ID:       n.nextMessageID(),
		TTL:      TTLDefault,
		FileInfo: wire.FileInfo{Name: name, Origin: n.Addr, Version: 0, Valid: true},
		Sender:   n.Addr,
	}
	if err := n.sendFireAndForget(wire.CmdQuery, m); err != nil {
		n.Log.Errorf("search %s: %v", name, err)
	}
}

// Refresh is the pull-model alias of Search used after an "outdated"
// verdict: it re-issues a query for a file this leaf previously held but
// has since deregistered.
func (n *Node) Refresh(name string) {
	n.Search(name)
}
