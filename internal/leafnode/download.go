package leafnode

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// handleQueryHit is invoked once per inbound queryhit read off the
// persistent super-peer session. It enforces the single-flight guarantee:
// only the first queryhit for a given message_id performs a download,
// which is orthogonal to super-peer dedup and protects against two
// distinct super-peers each independently learning of two holders for
// one query.
func (n *Node) handleQueryHit(ctx context.Context, m wire.Message, holder wire.Address) {
	n.dlMu.Lock()
	if n.dlSeen[m.ID] {
		n.dlMu.Unlock()
		return
	}
	n.dlSeen[m.ID] = true
	n.dlMu.Unlock()

	if err := n.downloadFrom(holder, m.FileInfo.Name); err != nil {
		n.Log.Errorf("download %s from %s failed: %v", m.FileInfo.Name, holder, err)
		n.dlMu.Lock()
		delete(n.dlSeen, m.ID) // future queryhits for a new message_id on this name are eligible again
		n.dlMu.Unlock()
		return
	}

	// Announce the new replica so the super-peer lists this leaf as a
	// holder and routes invalidates for the file here.
	if fi, ok := n.Registry.Get(m.FileInfo.Name); ok {
		n.Register(fi)
	}
}

// downloadFrom performs the obtain protocol against holder for name,
// writing the result into downloads/. A partial file is removed on any
// mid-transfer error.
func (n *Node) downloadFrom(holder wire.Address, name string) error {
	conn, r, err := transport.Dial(holder, n.Addr)
	if err != nil {
		return fmt.Errorf("leafnode: dial holder: %w", err)
	}
	defer conn.Close()

	req := wire.Message{
		ID:       n.nextMessageID(),
		TTL:      TTLDefault,
		FileInfo: wire.FileInfo{Name: name},
		Sender:   n.Addr,
	}
	if err := transport.SendLine(conn, wire.FormatMessageFrame(wire.CmdObtain, req)); err != nil {
		return fmt.Errorf("leafnode: send obtain: %w", err)
	}

	line, err := transport.ReadLine(r)
	if err != nil {
		return fmt.Errorf("leafnode: read fileinfo header: %w", err)
	}
	fi, err := wire.ParseFileInfo(line)
	if err != nil {
		return err
	}

	path := n.downloadPath(name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("leafnode: create %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("leafnode: transfer %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("leafnode: close %s: %w", path, err)
	}

	n.Registry.Put(fi)
	n.Log.Infof("downloaded %s from %s (version %d)", name, holder, fi.Version)
	return nil
}

// serveObtain resolves name by searching owned/ then downloads/, writes
// the current FileInfo header, and streams the full file byte-for-byte:
// every byte read is written, with no off-by-one truncation of the
// final byte.
func (n *Node) serveObtain(conn net.Conn, rest string) {
	m, err := wire.ParseMessage(rest)
	if err != nil {
		n.Log.Warnf("malformed obtain frame: %v", err)
		return
	}
	name := m.FileInfo.Name

	fi, ok := n.Registry.Get(name)
	if !ok {
		n.Log.Warnf("obtain for unregistered file %q", name)
		return
	}

	path := n.ownedPath(name)
	f, err := os.Open(path)
	if err != nil {
		path = n.downloadPath(name)
		f, err = os.Open(path)
		if err != nil {
			n.Log.Warnf("obtain: %s not found on disk: %v", name, err)
			return
		}
	}
	defer f.Close()

	if err := transport.SendLine(conn, fi.String()); err != nil {
		n.Log.Warnf("obtain: send fileinfo for %s: %v", name, err)
		return
	}
	if _, err := io.Copy(conn, f); err != nil {
		n.Log.Warnf("obtain: transfer %s: %v", name, err)
	}
}
