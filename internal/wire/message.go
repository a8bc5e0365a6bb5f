package wire

import (
	"strconv"
	"strings"
)

// Message is the envelope carried by register, deregister, query,
// invalidate, and obtain frames.
//
// MessageID is a node-unique string formed as "<origin_address>-<sequence>"
// where sequence increments at the originating leaf. TTL decrements by one
// at every super-peer that forwards the message. Sender is the last hop
// that transmitted the message; a super-peer rewrites it on forward, and
// it is distinct from FileInfo.Origin.
//
// Text form: "id;ttl;fileinfo;sender".
type Message struct {
	ID       string
	TTL      int
	FileInfo FileInfo
	Sender   Address
}

// ParseMessage parses the semicolon-separated Message record.
func ParseMessage(s string) (Message, error) {
	fields := strings.Split(s, ";")
	if len(fields) != 4 {
		return Message{}, malformed(s, "message record must have 4 semicolon-separated fields")
	}

	ttl, err := strconv.Atoi(fields[1])
	if err != nil {
		return Message{}, malformed(s, "bad ttl: "+err.Error())
	}

	fi, err := ParseFileInfo(fields[2])
	if err != nil {
		return Message{}, err
	}

	sender, err := ParseAddress(fields[3])
	if err != nil {
		return Message{}, malformed(s, "bad sender address: "+err.Error())
	}

	return Message{
		ID:       fields[0],
		TTL:      ttl,
		FileInfo: fi,
		Sender:   sender,
	}, nil
}

// String renders the Message in its 4-field wire form.
func (m Message) String() string {
	return m.ID + ";" + strconv.Itoa(m.TTL) + ";" + m.FileInfo.String() + ";" + m.Sender.String()
}

// WithSenderAndTTL returns a copy of m with Sender and TTL replaced, as
// done by a super-peer rewriting a message before forwarding it.
func (m Message) WithSenderAndTTL(sender Address, ttl int) Message {
	m.Sender = sender
	m.TTL = ttl
	return m
}

// NextMessageID formats the node-unique message id "<origin>-<sequence>".
func NextMessageID(origin Address, sequence int64) string {
	return origin.String() + "-" + strconv.FormatInt(sequence, 10)
}
