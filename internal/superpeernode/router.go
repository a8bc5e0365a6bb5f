package superpeernode

import (
	"net"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// dispatchFrame handles one parsed frame, regardless of whether it
// arrived over a single-shot neighbor connection or a persistent leaf
// session. fromLeaf distinguishes the two for the query/invalidate
// routing rules, which treat the immediate sender differently depending
// on whether it was a leaf or an upstream super-peer.
func (n *Node) dispatchFrame(cmd wire.Command, rest string, conn net.Conn, peer wire.Address, fromLeaf bool) {
	switch cmd {
	case wire.CmdRegister:
		n.handleRegister(rest, conn, peer)
	case wire.CmdDeregister:
		n.handleDeregister(rest, conn, peer)
	case wire.CmdQuery:
		n.handleQuery(rest, peer, fromLeaf)
	case wire.CmdQueryHit:
		n.handleQueryHitReply(rest)
	case wire.CmdInvalidate:
		n.handleInvalidateFrame(rest, peer, fromLeaf)
	default:
		n.Log.Warnf("unrecognized frame %q from %s", cmd, peer)
	}
}

func (n *Node) handleRegister(rest string, conn net.Conn, peer wire.Address) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed register from %s: %v", peer, err)
		return
	}
	n.Registry.Register(m.FileInfo.Name, peer)
	n.reply(conn, peer, "0")
}

func (n *Node) handleDeregister(rest string, conn net.Conn, peer wire.Address) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed deregister from %s: %v", peer, err)
		return
	}
	n.Registry.Deregister(m.FileInfo.Name, peer)
	n.reply(conn, peer, "0")
}

// reply writes line back to peer, preferring the serialized session
// writer when peer is a connected leaf (the same connection may also be
// receiving an asynchronously pushed queryhit concurrently)
// and falling back to a direct write for single-shot neighbor exchanges.
func (n *Node) reply(conn net.Conn, peer wire.Address, line string) {
	if s, ok := n.sessionFor(peer); ok {
		_ = s.writeLine(line)
		return
	}
	_ = transport.SendLine(conn, line)
}

// handleQuery is the controlled-flood router.
func (n *Node) handleQuery(rest string, peer wire.Address, fromLeaf bool) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed query from %s: %v", peer, err)
		return
	}

	source := m.Sender
	if fromLeaf {
		source = peer
	}

	if !n.History.RecordIfAbsent(m.ID, source) {
		return // already handled this message_id
	}

	for _, holder := range n.Registry.Holders(m.FileInfo.Name) {
		n.deliverQueryHit(source, m, holder)
	}

	if m.TTL <= 0 {
		return
	}
	forwarded := m.WithSenderAndTTL(n.Addr, m.TTL-1)
	for _, nb := range n.Neighbors {
		if !fromLeaf && nb == m.Sender {
			continue // loop-avoidance: never forward back to the hop that sent it
		}
		go func(nb wire.Address) {
			frame := wire.FormatMessageFrame(wire.CmdQuery, forwarded)
			if err := transport.DialAndSendNoReply(nb, n.Addr, frame); err != nil {
				n.Log.Warnf("forward query to %s: %v", nb, err)
			}
		}(nb)
	}
}

// handleQueryHitReply is invoked when a "queryhit m h" frame arrives from
// a neighbor super-peer carrying a reply for a query this node forwarded
// earlier. It routes the reply one more hop toward the originator using
// the reverse-path history entry.
func (n *Node) handleQueryHitReply(rest string) {
	m, holder, err := wire.ParseQueryHit(rest)
	if err != nil {
		n.Log.Warnf("malformed queryhit: %v", err)
		return
	}
	returnAddr, ok := n.History.Lookup(m.ID)
	if !ok {
		return // evicted from history; drop silently
	}
	n.deliverQueryHit(returnAddr, m, holder)
}

// deliverQueryHit writes a queryhit frame toward dest: over the
// persistent session if dest is one of our connected leaves, otherwise
// via a fresh one-shot connection (dest is an upstream super-peer on the
// reverse path).
func (n *Node) deliverQueryHit(dest wire.Address, m wire.Message, holder wire.Address) {
	frame := wire.FormatQueryHit(m, holder)
	if s, ok := n.sessionFor(dest); ok {
		if err := s.writeLine(frame); err != nil {
			n.Log.Warnf("deliver queryhit to leaf %s: %v", dest, err)
		}
		return
	}
	if err := transport.DialAndSendNoReply(dest, n.Addr, frame); err != nil {
		n.Log.Warnf("deliver queryhit to %s: %v", dest, err)
	}
}

// handleInvalidateFrame is the invalidation propagator. Every holder
// other than the sender is notified and dropped from the registry; the
// message is then forwarded to every neighbor (except the sending one,
// when the sender was itself a neighbor) while ttl > 0, the same
// forwarding rule as query, applied uniformly regardless of whether
// this super-peer is the first or a later hop to see it.
func (n *Node) handleInvalidateFrame(rest string, peer wire.Address, fromLeaf bool) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed invalidate from %s: %v", peer, err)
		return
	}

	if !n.History.RecordIfAbsent(m.ID, peer) {
		return
	}

	name := m.FileInfo.Name
	for _, holder := range n.Registry.HoldersExcept(name, peer) {
		n.deliverInvalidate(holder, m)
		n.Registry.Deregister(name, holder)
	}

	if m.TTL <= 0 {
		return
	}
	forwarded := m.WithSenderAndTTL(n.Addr, m.TTL-1)
	for _, nb := range n.Neighbors {
		if !fromLeaf && nb == m.Sender {
			continue
		}
		go func(nb wire.Address) {
			frame := wire.FormatMessageFrame(wire.CmdInvalidate, forwarded)
			if err := transport.DialAndSendNoReply(nb, n.Addr, frame); err != nil {
				n.Log.Warnf("forward invalidate to %s: %v", nb, err)
			}
		}(nb)
	}
}

// deliverInvalidate writes an invalidate frame to a leaf over a fresh
// one-shot connection to the leaf's own listener, which is where a leaf
// handles invalidates (its persistent-session reader does not).
func (n *Node) deliverInvalidate(dest wire.Address, m wire.Message) {
	frame := wire.FormatMessageFrame(wire.CmdInvalidate, m)
	if err := transport.DialAndSendNoReply(dest, n.Addr, frame); err != nil {
		n.Log.Warnf("deliver invalidate to %s: %v", dest, err)
	}
}
