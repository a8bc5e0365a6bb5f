// Package transport implements the shared connection-accept loop and
// dial helpers used by both leaf and super-peer nodes. It knows nothing
// about leaf/super-peer classification; callers supply a Handler that
// receives the peer's handshake address and takes it from there. This
// keeps the node types free of any embedded-listener ownership cycle:
// a listener is a free function taking a handle to the node, not a
// nested type owned by it.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// ConnDeadline is the default per-connection read/write deadline applied
// to every accepted and dialed connection, since the protocol itself
// defines no timeouts and liveness otherwise depends entirely on the
// peer eventually closing.
const ConnDeadline = 30 * time.Second

// Handler processes one inbound connection after its handshake line has
// been read and parsed. The connection stays open for as long as the
// handler runs; the listener closes it once the handler returns.
type Handler func(ctx context.Context, conn net.Conn, r *bufio.Reader, peer wire.Address)

type logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
}

// Listener runs the accept loop for one bound address, spawning a
// goroutine per inbound connection.
type Listener struct {
	ln  net.Listener
	log logger
	wg  sync.WaitGroup
}

// Listen binds addr and returns a Listener ready to Serve.
func Listen(addr wire.Address, log logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, log: log}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Wait blocks until every spawned connection handler has returned.
func (l *Listener) Wait() { l.wg.Wait() }

// Serve accepts connections until ctx is canceled or the listener is
// closed, reading the handshake line of each and dispatching to handle.
func (l *Listener) Serve(ctx context.Context, handle Handler) {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				l.log.Warnf("accept failed: %v", err)
				return
			}
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serveOne(ctx, conn, handle)
		}()
	}
}

func (l *Listener) serveOne(ctx context.Context, conn net.Conn, handle Handler) {
	defer conn.Close()

	// corrID ties every log line for this connection together; it never
	// appears on the wire, only in log output.
	corrID := uuid.NewString()

	_ = conn.SetDeadline(time.Now().Add(ConnDeadline))
	r := bufio.NewReader(conn)

	line, err := readLine(r)
	if err != nil {
		l.log.Warnf("[%s] handshake read from %s failed: %v", corrID, conn.RemoteAddr(), err)
		return
	}

	peer, err := wire.ParseAddress(line)
	if err != nil {
		l.log.Warnf("[%s] malformed handshake from %s: %v", corrID, conn.RemoteAddr(), err)
		return
	}

	l.log.Debugf("[%s] accepted connection from %s", corrID, peer)
	handle(ctx, conn, r, peer)
}

// readLine reads one newline-terminated frame, trimming the trailing
// newline (and any carriage return).
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
