// Package config parses the line-oriented, whitespace-delimited topology
// config file and the node-scoped view each node loads from it.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

type superLink struct {
	superPeer wire.Address
	neighbor  wire.Address
}

type leafLink struct {
	superPeer wire.Address
	leaf      wire.Address
}

// Topology is the fully parsed config file: every record, independent of
// which node eventually reads it.
type Topology struct {
	Model      Model
	superLinks []superLink
	leafLinks  []leafLink
}

// Load reads and parses the topology config file at path. It fails fast
// with a descriptive diagnostic on any malformed record: a config parse
// failure must prevent the listener from starting.
func Load(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses a topology config from r. Exported separately from Load so
// tests can feed in-memory topologies.
func Parse(r io.Reader) (*Topology, error) {
	t := &Topology{Model: Push()}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	sawC := false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "c":
			model, err := parseConsistencyRecord(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
			}
			t.Model = model
			sawC = true
		case "s":
			if len(fields) != 3 {
				return nil, fmt.Errorf("config: line %d: %q: s record needs exactly 2 arguments", lineNo, line)
			}
			sp, err := wire.ParseAddress(fields[1])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
			}
			nb, err := wire.ParseAddress(fields[2])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
			}
			t.superLinks = append(t.superLinks, superLink{superPeer: sp, neighbor: nb})
		case "p":
			if len(fields) != 3 {
				return nil, fmt.Errorf("config: line %d: %q: p record needs exactly 2 arguments", lineNo, line)
			}
			sp, err := wire.ParseAddress(fields[1])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
			}
			leaf, err := wire.ParseAddress(fields[2])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
			}
			t.leafLinks = append(t.leafLinks, leafLink{superPeer: sp, leaf: leaf})
		default:
			// Unknown prefixes are logged and ignored, not a parse failure.
			fmt.Fprintf(os.Stderr, "config: line %d: unrecognized record prefix %q, ignoring\n", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	_ = sawC // missing "c" line is not an error; default model (push) already set.
	return t, nil
}

func parseConsistencyRecord(args []string) (Model, error) {
	if len(args) == 0 {
		return Model{}, fmt.Errorf("c record needs at least one argument")
	}
	switch args[0] {
	case "push":
		return Push(), nil
	case "pull":
		if len(args) != 2 {
			return Model{}, fmt.Errorf("c pull record needs a ttr_minutes argument")
		}
		ttr, err := strconv.Atoi(args[1])
		if err != nil {
			return Model{}, fmt.Errorf("bad ttr_minutes: %w", err)
		}
		return Pull(ttr), nil
	default:
		return Model{}, fmt.Errorf("unrecognized consistency model %q", args[0])
	}
}

// NeighborsOf returns the declared super-peer neighbors of sp.
func (t *Topology) NeighborsOf(sp wire.Address) []wire.Address {
	var out []wire.Address
	for _, l := range t.superLinks {
		switch {
		case l.superPeer == sp:
			out = append(out, l.neighbor)
		case l.neighbor == sp:
			out = append(out, l.superPeer)
		}
	}
	return out
}

// LeavesOf returns the declared leaves of sp.
func (t *Topology) LeavesOf(sp wire.Address) []wire.Address {
	var out []wire.Address
	for _, l := range t.leafLinks {
		if l.superPeer == sp {
			out = append(out, l.leaf)
		}
	}
	return out
}

// SuperPeerOf returns the super-peer that leaf connects to, and whether
// one was declared.
func (t *Topology) SuperPeerOf(leaf wire.Address) (wire.Address, bool) {
	for _, l := range t.leafLinks {
		if l.leaf == leaf {
			return l.superPeer, true
		}
	}
	return wire.Address{}, false
}
