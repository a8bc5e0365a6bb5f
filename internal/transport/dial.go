package transport

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// Dial opens a new connection to addr and performs the initiator-side
// handshake: writing self's address as the first line. Every inter-node
// connection in this protocol is initiator-handshaked this way, whether
// it is a one-shot super-peer exchange or a persistent leaf session.
func Dial(addr, self wire.Address) (net.Conn, *bufio.Reader, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), ConnDeadline)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(ConnDeadline))

	if _, err := fmt.Fprintf(conn, "%s\n", self.String()); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("transport: handshake to %s: %w", addr, err)
	}

	return conn, bufio.NewReader(conn), nil
}

// SendLine writes one newline-terminated frame.
func SendLine(conn net.Conn, line string) error {
	_, err := fmt.Fprintf(conn, "%s\n", line)
	return err
}

// ReadLine reads one newline-terminated frame from r, trimming the
// trailing newline.
func ReadLine(r *bufio.Reader) (string, error) {
	return readLine(r)
}

// DialAndSend opens a one-shot connection to addr, performs the
// handshake, writes line, reads exactly one response line, and closes
// the connection. This is the pattern for a one-shot request/response
// exchange such as the pull-model status probe.
func DialAndSend(addr, self wire.Address, line string) (string, error) {
	conn, r, err := Dial(addr, self)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := SendLine(conn, line); err != nil {
		return "", fmt.Errorf("transport: send to %s: %w", addr, err)
	}

	resp, err := readLine(r)
	if err != nil {
		return "", fmt.Errorf("transport: read reply from %s: %w", addr, err)
	}
	return resp, nil
}

// DialAndSendNoReply is DialAndSend for frames that expect no reply
// (queryhit delivery, invalidate delivery): it performs the handshake,
// writes line, and closes without waiting to read anything back.
func DialAndSendNoReply(addr, self wire.Address, line string) error {
	conn, _, err := Dial(addr, self)
	if err != nil {
		return err
	}
	defer conn.Close()
	return SendLine(conn, line)
}
