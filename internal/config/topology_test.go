package config

import (
	"strings"
	"testing"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
	"github.com/stretchr/testify/require"
)

func addr(s string) wire.Address {
	a, err := wire.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestParseDefaultsToPush(t *testing.T) {
	top, err := Parse(strings.NewReader("p 127.0.0.1:5000 127.0.0.1:6001\n"))
	require.NoError(t, err)
	require.True(t, top.Model.IsPush())
}

func TestParsePull(t *testing.T) {
	top, err := Parse(strings.NewReader("c pull 1\n"))
	require.NoError(t, err)
	require.True(t, top.Model.IsPull())
	require.Equal(t, "1m0s", top.Model.TTR().String())
}

func TestParseTopology(t *testing.T) {
	cfg := `
c push
s 127.0.0.1:5000 127.0.0.1:5001
p 127.0.0.1:5000 127.0.0.1:6001
p 127.0.0.1:5000 127.0.0.1:6003
`
	top, err := Parse(strings.NewReader(cfg))
	require.NoError(t, err)

	require.ElementsMatch(t, []wire.Address{addr("127.0.0.1:5001")}, top.NeighborsOf(addr("127.0.0.1:5000")))
	require.ElementsMatch(t, []wire.Address{addr("127.0.0.1:5000")}, top.NeighborsOf(addr("127.0.0.1:5001")))
	require.ElementsMatch(t,
		[]wire.Address{addr("127.0.0.1:6001"), addr("127.0.0.1:6003")},
		top.LeavesOf(addr("127.0.0.1:5000")))

	sp, ok := top.SuperPeerOf(addr("127.0.0.1:6001"))
	require.True(t, ok)
	require.Equal(t, addr("127.0.0.1:5000"), sp)

	_, ok = top.SuperPeerOf(addr("127.0.0.1:9999"))
	require.False(t, ok)
}

func TestParseUnknownPrefixIgnored(t *testing.T) {
	_, err := Parse(strings.NewReader("x whatever\n"))
	require.NoError(t, err)
}

func TestParseMalformedFailsFast(t *testing.T) {
	_, err := Parse(strings.NewReader("s onlyoneaddr\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("c pull notanumber\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("c bogus\n"))
	require.Error(t, err)
}
