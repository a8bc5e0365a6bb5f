package transport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/obs"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestListenerDispatchesHandshakeAddress(t *testing.T) {
	self := wire.Address{Host: "127.0.0.1", Port: "0"}
	ln, err := Listen(self, obs.New("test"))
	require.NoError(t, err)
	defer ln.Close()

	boundAddr := ln.Addr().(*net.TCPAddr)

	received := make(chan wire.Address, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ln.Serve(ctx, func(ctx context.Context, conn net.Conn, r *bufio.Reader, peer wire.Address) {
		received <- peer
	})

	caller := wire.Address{Host: "127.0.0.1", Port: "6001"}
	target := wire.Address{Host: boundAddr.IP.String(), Port: strconv.Itoa(boundAddr.Port)}
	conn, _, err := Dial(target, caller)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case got := <-received:
		require.Equal(t, caller, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake dispatch")
	}
}

func TestDialAndSend(t *testing.T) {
	self := wire.Address{Host: "127.0.0.1", Port: "0"}
	ln, err := Listen(self, obs.New("test"))
	require.NoError(t, err)
	defer ln.Close()

	boundAddr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ln.Serve(ctx, func(ctx context.Context, conn net.Conn, r *bufio.Reader, peer wire.Address) {
		line, err := ReadLine(r)
		if err != nil {
			return
		}
		_ = SendLine(conn, "echo:"+line)
	})

	caller := wire.Address{Host: "127.0.0.1", Port: "6001"}
	target := wire.Address{Host: boundAddr.IP.String(), Port: strconv.Itoa(boundAddr.Port)}

	resp, err := DialAndSend(target, caller, "ping")
	require.NoError(t, err)
	require.Equal(t, "echo:ping", resp)
}
