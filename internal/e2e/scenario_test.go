// Package e2e exercises whole leaf + super-peer node graphs over real
// loopback TCP, matching the literal end-to-end scenarios: single-hop
// query hit, push invalidation, and TTL cutoff on a chained backbone.
package e2e

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n0rdlicht/gnutellafs/internal/config"
	"github.com/n0rdlicht/gnutellafs/internal/leafnode"
	"github.com/n0rdlicht/gnutellafs/internal/superpeernode"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

func freeAddr(t *testing.T) wire.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	tcpAddr := ln.Addr().(*net.TCPAddr)
	return wire.Address{Host: "127.0.0.1", Port: strconv.Itoa(tcpAddr.Port)}
}

func startSuperPeer(t *testing.T, ctx context.Context, addr wire.Address, neighbors, leaves []wire.Address) *superpeernode.Node {
	t.Helper()
	sp := superpeernode.New(addr, neighbors, leaves)
	go func() { _ = sp.Run(ctx) }()
	waitForListener(t, addr)
	return sp
}

func startLeaf(t *testing.T, ctx context.Context, addr, superPeer wire.Address, model config.Model) *leafnode.Node {
	t.Helper()
	leaf, err := leafnode.New(addr, t.TempDir(), superPeer, model)
	require.NoError(t, err)
	require.NoError(t, leaf.ScanDirectories())
	go func() { _ = leaf.Run(ctx) }()
	waitForListener(t, addr)
	return leaf
}

func waitForListener(t *testing.T, addr wire.Address) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr.String(), 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func ownFile(t *testing.T, leaf *leafnode.Node, name, contents string) {
	t.Helper()
	path := leaf.OwnedFilePath(name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	leaf.Register(wire.FileInfo{Name: name, Origin: leaf.Addr, Version: 1, Valid: true})
}

func TestSingleHopQueryHit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spAddr := freeAddr(t)
	l1Addr := freeAddr(t)
	l2Addr := freeAddr(t)

	startSuperPeer(t, ctx, spAddr, nil, []wire.Address{l1Addr, l2Addr})
	l1 := startLeaf(t, ctx, l1Addr, spAddr, config.Push())
	l2 := startLeaf(t, ctx, l2Addr, spAddr, config.Push())

	// give both leaves time to complete their persistent-session handshake
	// before registering, since register blocks on the reply channel.
	time.Sleep(100 * time.Millisecond)

	ownFile(t, l2, "Coco.mp4", "movie bytes")

	l1.Search("Coco.mp4")

	require.Eventually(t, func() bool {
		fi, ok := l1.Registry.Get("Coco.mp4")
		return ok && fi.Origin == l2Addr && fi.Version == 1
	}, 3*time.Second, 20*time.Millisecond, "L1 should discover and download Coco.mp4 from L2")

	got, err := os.ReadFile(l1.DownloadedFilePath("Coco.mp4"))
	require.NoError(t, err)
	require.Equal(t, "movie bytes", string(got))
}

func TestPushInvalidationPropagatesAfterModify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spAddr := freeAddr(t)
	l1Addr := freeAddr(t)
	l2Addr := freeAddr(t)

	startSuperPeer(t, ctx, spAddr, nil, []wire.Address{l1Addr, l2Addr})
	l1 := startLeaf(t, ctx, l1Addr, spAddr, config.Push())
	l2 := startLeaf(t, ctx, l2Addr, spAddr, config.Push())
	time.Sleep(100 * time.Millisecond)

	ownFile(t, l2, "Coco.mp4", "v1 bytes")
	l1.Search("Coco.mp4")
	require.Eventually(t, func() bool {
		_, ok := l1.Registry.Get("Coco.mp4")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	// simulate the watcher's reaction to a modify event directly, since
	// this test does not wire up a real fsnotify subscription.
	l2.HandleModify("Coco.mp4")
	fi, ok := l2.Registry.Get("Coco.mp4")
	require.True(t, ok)
	require.Equal(t, int64(2), fi.Version)

	require.Eventually(t, func() bool {
		_, ok := l1.Registry.Get("Coco.mp4")
		return !ok
	}, 3*time.Second, 20*time.Millisecond, "L1 should drop its replica after invalidation")

	_, err := os.Stat(l1.DownloadedFilePath("Coco.mp4"))
	require.True(t, os.IsNotExist(err))
}

func TestTTLCutoffOnLinearChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const hops = 12
	spAddrs := make([]wire.Address, hops)
	for i := range spAddrs {
		spAddrs[i] = freeAddr(t)
	}

	queryingLeaf := freeAddr(t)
	ownerLeaf := freeAddr(t)

	for i, spAddr := range spAddrs {
		var neighbors []wire.Address
		if i > 0 {
			neighbors = append(neighbors, spAddrs[i-1])
		}
		if i < hops-1 {
			neighbors = append(neighbors, spAddrs[i+1])
		}
		var leaves []wire.Address
		switch i {
		case 0:
			leaves = []wire.Address{queryingLeaf}
		case hops - 1:
			leaves = []wire.Address{ownerLeaf}
		}
		startSuperPeer(t, ctx, spAddr, neighbors, leaves)
	}

	querier := startLeaf(t, ctx, queryingLeaf, spAddrs[0], config.Push())
	owner := startLeaf(t, ctx, ownerLeaf, spAddrs[hops-1], config.Push())
	time.Sleep(150 * time.Millisecond)

	ownFile(t, owner, "Coco.mp4", "bytes")

	// TTLDefault=10 hops; the owner's super-peer is the 12th (index 11),
	// 11 hops away from the querier's super-peer (index 0), beyond the
	// TTL budget, so no queryhit should ever arrive.
	querier.Search("Coco.mp4")

	time.Sleep(1 * time.Second)
	_, ok := querier.Registry.Get("Coco.mp4")
	require.False(t, ok, "query should not reach an owner beyond the TTL-bounded hop count")
}
