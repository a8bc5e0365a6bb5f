package leafnode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// RunCLI reads line-oriented commands from in and writes responses to
// out until ctx is canceled or in is exhausted. It is intentionally
// synchronous and single-threaded: CLI commands never run concurrently
// with each other, only alongside the node's background goroutines.
func (n *Node) RunCLI(ctx context.Context, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if n.runCLICommand(out, line) {
				return
			}
		}
	}
}

// runCLICommand executes one command line and reports whether the CLI
// loop should stop.
func (n *Node) runCLICommand(out io.Writer, line string) (exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "print":
		n.printStatus(out)
	case "register":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: register <name>")
			return false
		}
		n.Register(n.nextOwnedVersion(fields[1]))
	case "deregister":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: deregister <name>")
			return false
		}
		n.Deregister(fields[1])
	case "search":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: search <name>")
			return false
		}
		n.Search(fields[1])
	case "refresh":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: refresh <name>")
			return false
		}
		n.Refresh(fields[1])
	case "exit", "quit":
		return true
	default:
		fmt.Fprintf(out, "unrecognized command %q\n", fields[0])
	}
	return false
}

// nextOwnedVersion builds the FileInfo for a manual register of a file
// this node originates: version 1 if name isn't already registered,
// otherwise the existing version unchanged (a version bump belongs to
// the filesystem watcher, not a manual re-register).
func (n *Node) nextOwnedVersion(name string) wire.FileInfo {
	if fi, ok := n.Registry.Get(name); ok {
		return fi
	}
	return wire.FileInfo{Name: name, Origin: n.Addr, Version: 1, Valid: true}
}

// printStatus reports this node's address, directories, consistency
// model, and full registry contents including last-checked timestamps
// when the model is pull.
func (n *Node) printStatus(out io.Writer) {
	fmt.Fprintf(out, "address:    %s\n", n.Addr)
	fmt.Fprintf(out, "super-peer: %s\n", n.SuperPeer)
	fmt.Fprintf(out, "root:       %s\n", n.Root)
	fmt.Fprintf(out, "model:      %s\n", n.Model)
	fmt.Fprintf(out, "ttl:        %d\n", TTLDefault)
	fmt.Fprintln(out, "registry:")

	for _, name := range n.Registry.Names() {
		fi, ok := n.Registry.Get(name)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-20s origin=%-21s version=%d valid=%t", name, fi.Origin, fi.Version, fi.Valid)
		if n.Model.IsPull() {
			if last, checked := n.Registry.LastChecked(name); checked {
				line += fmt.Sprintf(" last_checked=%s", last.Format(time.RFC3339))
			} else {
				line += " last_checked=never"
			}
		}
		fmt.Fprintln(out, line)
	}
}
