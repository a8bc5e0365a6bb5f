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
	"github.com/n0rdlicht/gnutellafs/internal/leafnode"
	"github.com/n0rdlicht/gnutellafs/internal/obs"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

var version = "dev"

//nolint:govet // Field alignment is acceptable
type leafConfig struct {
	addr        string
	topology    string
	root        string
	debug       bool
	showVersion bool
}

// parseFlags parses command-line flags and returns configuration.
// Default values are read from environment variables:
//   - GNUTELLA__ADDR: this leaf's own host:port
//   - GNUTELLA__TOPOLOGY: path to the topology config file
//   - GNUTELLA__ROOT: root directory holding owned/ and downloads/
//   - DEBUG: enables debug logs if set
func parseFlags(args []string) leafConfig {
	defaultAddr := os.Getenv("GNUTELLA__ADDR")
	defaultTopology := os.Getenv("GNUTELLA__TOPOLOGY")
	defaultRoot := os.Getenv("GNUTELLA__ROOT")
	debugDefault := os.Getenv("DEBUG") != ""

	fs := flag.NewFlagSet("gnutella-leaf", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "this leaf's own host:port [env GNUTELLA__ADDR]")
	topology := fs.String("topology", defaultTopology, "path to topology config file [env GNUTELLA__TOPOLOGY]")
	root := fs.String("root", defaultRoot, "root directory for owned/ and downloads/ [env GNUTELLA__ROOT]")
	debug := fs.Bool("debug", debugDefault, "enable debug logs [env DEBUG]")
	showVersion := fs.Bool("version", false, "print version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\ngnutella-leaf: %s\nHierarchical P2P file-sharing leaf peer\n\n", version)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}

	//nolint:errcheck // flag.ExitOnError exits on a parse failure
	_ = fs.Parse(args)

	return leafConfig{
		addr:        *addr,
		topology:    *topology,
		root:        *root,
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

	if cfg.addr == "" || cfg.topology == "" || cfg.root == "" {
		log.Fatal("[ERROR] -addr, -topology, and -root (or their env equivalents) are all required")
	}

	self, err := wire.ParseAddress(cfg.addr)
	if err != nil {
		log.Fatalf("[ERROR] bad -addr: %v", err)
	}

	topo, err := config.Load(cfg.topology)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	superPeer, ok := topo.SuperPeerOf(self)
	if !ok {
		log.Fatalf("[ERROR] topology has no super-peer declared for leaf %s", self)
	}

	node, err := leafnode.New(self, cfg.root, superPeer, topo.Model)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	if err := node.ScanDirectories(); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

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
