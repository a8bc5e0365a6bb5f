package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/n0rdlicht/gnutellafs/internal/config"
	"github.com/n0rdlicht/gnutellafs/internal/obs"
	"github.com/n0rdlicht/gnutellafs/internal/superpeernode"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

var version = "dev"

//nolint:govet // Field alignment is acceptable
type superPeerConfig struct {
	addr        string
	topology    string
	debug       bool
	showVersion bool
}

// parseFlags parses command-line flags and returns configuration.
// Default values are read from environment variables:
//   - GNUTELLA__ADDR: this super-peer's own host:port
//   - GNUTELLA__TOPOLOGY: path to the topology config file
//   - DEBUG: enables debug logs if set
func parseFlags(args []string) superPeerConfig {
	defaultAddr := os.Getenv("GNUTELLA__ADDR")
	defaultTopology := os.Getenv("GNUTELLA__TOPOLOGY")
	debugDefault := os.Getenv("DEBUG") != ""

	fs := flag.NewFlagSet("gnutella-superpeer", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "this super-peer's own host:port [env GNUTELLA__ADDR]")
	topology := fs.String("topology", defaultTopology, "path to topology config file [env GNUTELLA__TOPOLOGY]")
	debug := fs.Bool("debug", debugDefault, "enable debug logs [env DEBUG]")
	showVersion := fs.Bool("version", false, "print version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\ngnutella-superpeer: %s\nHierarchical P2P file-sharing backbone node\n\n", version)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}

	//nolint:errcheck // flag.ExitOnError exits on a parse failure
	_ = fs.Parse(args)

	return superPeerConfig{
		addr:        *addr,
		topology:    *topology,
		debug:       *debug,
		showVersion: *showVersion,
	}
}

func setupSignalHandling() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	cfg := parseFlags(os.Args[1:])

	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	obs.SetDebug(cfg.debug)

	if cfg.addr == "" || cfg.topology == "" {
		log.Fatal("[ERROR] -addr and -topology (or their env equivalents) are both required")
	}

	self, err := wire.ParseAddress(cfg.addr)
	if err != nil {
		log.Fatalf("[ERROR] bad -addr: %v", err)
	}

	topo, err := config.Load(cfg.topology)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	node := superpeernode.New(self, topo.NeighborsOf(self), topo.LeavesOf(self))

	ctx, stop := setupSignalHandling()
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- node.Run(ctx) }()

	node.RunCLI(ctx, os.Stdin, os.Stdout)
	stop()

	if err := <-errCh; err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}
