package registry

import (
	"testing"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) wire.Address {
	a, err := wire.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestLeafRegistryPutGetRemove(t *testing.T) {
	r := NewLeafRegistry()
	self := mustAddr(t, "127.0.0.1:6001")
	fi := wire.FileInfo{Name: "Coco.mp4", Origin: self, Version: 1, Valid: true}

	_, ok := r.Get("Coco.mp4")
	require.False(t, ok)

	r.Put(fi)
	got, ok := r.Get("Coco.mp4")
	require.True(t, ok)
	require.Equal(t, fi, got)
	require.True(t, r.IsOrigin("Coco.mp4", self))

	require.True(t, r.Remove("Coco.mp4"))
	require.False(t, r.Remove("Coco.mp4"))
	_, ok = r.Get("Coco.mp4")
	require.False(t, ok)
}

func TestLeafRegistryBumpVersion(t *testing.T) {
	r := NewLeafRegistry()
	self := mustAddr(t, "127.0.0.1:6001")
	r.Put(wire.FileInfo{Name: "f", Origin: self, Version: 1, Valid: true})

	fi, ok := r.BumpVersion("f")
	require.True(t, ok)
	require.Equal(t, int64(2), fi.Version)

	_, ok = r.BumpVersion("missing")
	require.False(t, ok)
}

func TestLeafRegistryLastChecked(t *testing.T) {
	r := NewLeafRegistry()
	r.Put(wire.FileInfo{Name: "f", Version: 1})

	_, ok := r.LastChecked("f")
	require.False(t, ok)

	now := time.Now()
	r.SetLastChecked("f", now)
	got, ok := r.LastChecked("f")
	require.True(t, ok)
	require.Equal(t, now, got)

	// SetLastChecked on a deregistered entry is a no-op, not a panic.
	r.Remove("f")
	r.SetLastChecked("f", now)
}

func TestLeafRegistryNames(t *testing.T) {
	r := NewLeafRegistry()
	r.Put(wire.FileInfo{Name: "a"})
	r.Put(wire.FileInfo{Name: "b"})
	require.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
