package superpeernode

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

func bindTestNode(t *testing.T, n *Node) wire.Address {
	t.Helper()
	ln, err := transport.Listen(wire.Address{Host: "127.0.0.1", Port: "0"}, n.Log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})
	go ln.Serve(ctx, n.handleConnection)

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return wire.Address{Host: tcpAddr.IP.String(), Port: strconv.Itoa(tcpAddr.Port)}
}

func TestRegisterAndDeregisterOverWire(t *testing.T) {
	leaf := addr(t, "127.0.0.1:6001")
	n := New(wire.Address{}, nil, []wire.Address{leaf})
	spAddr := bindTestNode(t, n)
	n.Addr = spAddr

	fi := wire.FileInfo{Name: "f.txt", Origin: leaf, Version: 1, Valid: true}
	m := wire.Message{ID: "r-1", TTL: 10, FileInfo: fi, Sender: leaf}

	// a leaf session is persistent: closing it would cascade-deregister
	// the leaf's files, so both operations share one open connection.
	conn, r, err := transport.Dial(spAddr, leaf)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, transport.SendLine(conn, wire.FormatMessageFrame(wire.CmdRegister, m)))
	reply, err := transport.ReadLine(r)
	require.NoError(t, err)
	require.Equal(t, "0", reply)
	require.Eventually(t, func() bool {
		holders := n.Registry.Holders("f.txt")
		return len(holders) == 1 && holders[0] == leaf
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, transport.SendLine(conn, wire.FormatMessageFrame(wire.CmdDeregister, m)))
	reply, err = transport.ReadLine(r)
	require.NoError(t, err)
	require.Equal(t, "0", reply)
	require.Nil(t, n.Registry.Holders("f.txt"))
}

func TestUnrecognizedCallerIsRejected(t *testing.T) {
	n := New(wire.Address{}, nil, []wire.Address{addr(t, "127.0.0.1:6001")})
	spAddr := bindTestNode(t, n)

	stranger := addr(t, "127.0.0.1:9999")
	m := wire.Message{ID: "q-1", TTL: 5, FileInfo: wire.FileInfo{Name: "x"}, Sender: stranger}

	// the connection is accepted and immediately dropped after
	// classification fails; there is no reply to read.
	conn, r, err := transport.Dial(spAddr, stranger)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, transport.SendLine(conn, wire.FormatMessageFrame(wire.CmdQuery, m)))

	_, err = transport.ReadLine(r)
	require.Error(t, err, "the super-peer should close the connection without replying")
	require.Equal(t, 0, n.History.Len(), "a rejected caller's query must not be processed")
}
