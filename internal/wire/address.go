// Package wire implements the line-oriented text codec for the overlay's
// wire protocol: handshakes, message records, and file-info records.
package wire

import (
	"fmt"
	"strings"
)

// Address is a (host, port) pair. Two addresses are equal iff both
// components are equal; the text form is "host:port".
type Address struct {
	Host string
	Port string
}

// ParseAddress parses the "host:port" text form of an Address. The text
// form of the unset Address, ":", parses back to the unset Address.
func ParseAddress(s string) (Address, error) {
	if s == ":" {
		return Address{}, nil
	}
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 || idx == len(s)-1 {
		return Address{}, fmt.Errorf("wire: malformed address %q", s)
	}
	return Address{Host: s[:idx], Port: s[idx+1:]}, nil
}

// String renders the address in "host:port" form.
func (a Address) String() string {
	return a.Host + ":" + a.Port
}

// Zero reports whether a is the unset Address.
func (a Address) Zero() bool {
	return a.Host == "" && a.Port == ""
}
