package registry

import (
	"testing"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestSuperPeerRegisterDeregister(t *testing.T) {
	r := NewSuperPeerRegistry()
	l1 := mustAddr(t, "127.0.0.1:6001")
	l2 := mustAddr(t, "127.0.0.1:6003")

	r.Register("Coco.mp4", l1)
	r.Register("Coco.mp4", l2)
	require.ElementsMatch(t, []wire.Address{l1, l2}, r.Holders("Coco.mp4"))

	r.Deregister("Coco.mp4", l1)
	require.ElementsMatch(t, []wire.Address{l2}, r.Holders("Coco.mp4"))

	r.Deregister("Coco.mp4", l2)
	require.Nil(t, r.Holders("Coco.mp4"))
}

func TestSuperPeerHoldersExcept(t *testing.T) {
	r := NewSuperPeerRegistry()
	l1 := mustAddr(t, "127.0.0.1:6001")
	l2 := mustAddr(t, "127.0.0.1:6003")
	r.Register("f", l1)
	r.Register("f", l2)

	require.ElementsMatch(t, []wire.Address{l2}, r.HoldersExcept("f", l1))
}

func TestSuperPeerDeregisterLeafCascades(t *testing.T) {
	r := NewSuperPeerRegistry()
	leaf := mustAddr(t, "127.0.0.1:6001")
	other := mustAddr(t, "127.0.0.1:6003")

	r.Register("a", leaf)
	r.Register("b", leaf)
	r.Register("b", other)
	r.Register("c", other)

	affected := r.DeregisterLeaf(leaf)
	require.ElementsMatch(t, []string{"a", "b"}, affected)
	require.Nil(t, r.Holders("a"))
	require.ElementsMatch(t, []wire.Address{other}, r.Holders("b"))
	require.ElementsMatch(t, []wire.Address{other}, r.Holders("c"))
}
