package superpeernode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/n0rdlicht/gnutellafs/internal/registry"
)

// RunCLI serves the super-peer's minimal console: print and exit only.
// A super-peer has no owned files and no manual registry operations, so
// there is nothing else for an operator to do interactively.
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
			switch strings.TrimSpace(line) {
			case "print":
				n.printStatus(out)
			case "exit", "quit":
				return
			case "":
			default:
				fmt.Fprintf(out, "unrecognized command %q\n", line)
			}
		}
	}
}

func (n *Node) printStatus(out io.Writer) {
	fmt.Fprintf(out, "address:   %s\n", n.Addr)
	fmt.Fprintf(out, "neighbors: %v\n", n.Neighbors)
	fmt.Fprintf(out, "leaves:    %v\n", n.Leaves)
	fmt.Fprintf(out, "history:   %d/%d entries\n", n.History.Len(), registry.HistoryLimit)
}
