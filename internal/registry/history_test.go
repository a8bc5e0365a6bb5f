package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryDedup(t *testing.T) {
	h := NewHistory()
	a := mustAddr(t, "127.0.0.1:6001")

	require.True(t, h.RecordIfAbsent("m-1", a))
	require.False(t, h.RecordIfAbsent("m-1", a), "second arrival of the same id must be rejected")

	got, ok := h.Lookup("m-1")
	require.True(t, ok)
	require.Equal(t, a, got)
}

func TestHistoryLookupMiss(t *testing.T) {
	h := NewHistory()
	_, ok := h.Lookup("never-seen")
	require.False(t, ok)
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory()
	a := mustAddr(t, "127.0.0.1:6001")

	for i := 0; i < HistoryLimit; i++ {
		require.True(t, h.RecordIfAbsent(fmt.Sprintf("m-%d", i), a))
	}
	require.Equal(t, HistoryLimit, h.Len())

	// One more insert evicts m-0, the oldest.
	require.True(t, h.RecordIfAbsent("m-overflow", a))
	require.Equal(t, HistoryLimit, h.Len())

	_, ok := h.Lookup("m-0")
	require.False(t, ok, "oldest entry should have been evicted")

	_, ok = h.Lookup("m-1")
	require.True(t, ok, "second-oldest entry should survive a single overflow")

	_, ok = h.Lookup("m-overflow")
	require.True(t, ok)
}
