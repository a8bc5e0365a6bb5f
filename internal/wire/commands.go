package wire

import "strings"

// Command is the leading token of an inbound frame (everything but the
// bare handshake and the bare status replies, which carry no verb).
type Command string

const (
	CmdRegister   Command = "register"
	CmdDeregister Command = "deregister"
	CmdQuery      Command = "query"
	CmdQueryHit   Command = "queryhit"
	CmdInvalidate Command = "invalidate"
	CmdObtain     Command = "obtain"
	CmdStatus     Command = "status"
)

// Status reply bodies for the pull-model status exchange.
const (
	StatusDeleted  = "deleted"
	StatusUpToDate = "uptodate"
	StatusOutdated = "outdated"
)

// SplitCommand separates the leading verb from the remainder of a line.
// It returns ok=false for an empty line.
func SplitCommand(line string) (cmd Command, rest string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		if line == "" {
			return "", "", false
		}
		return Command(line), "", true
	}
	return Command(line[:idx]), line[idx+1:], true
}

// FormatQueryHit builds a "queryhit <message> <holder>" frame.
func FormatQueryHit(m Message, holder Address) string {
	return string(CmdQueryHit) + " " + m.String() + " " + holder.String()
}

// ParseQueryHit parses the payload following the "queryhit " verb:
// "<message> <holder>".
func ParseQueryHit(rest string) (Message, Address, error) {
	idx := strings.LastIndexByte(rest, ' ')
	if idx < 0 {
		return Message{}, Address{}, malformed(rest, "queryhit frame needs a message and a holder address")
	}
	m, err := ParseMessage(rest[:idx])
	if err != nil {
		return Message{}, Address{}, err
	}
	holder, err := ParseAddress(rest[idx+1:])
	if err != nil {
		return Message{}, Address{}, malformed(rest, "bad holder address: "+err.Error())
	}
	return m, holder, nil
}

// FormatMessageFrame builds a "<cmd> <message>" frame for register,
// deregister, query, invalidate, and obtain.
func FormatMessageFrame(cmd Command, m Message) string {
	return string(cmd) + " " + m.String()
}

// FormatStatusRequest builds a "status <fileinfo>" frame.
func FormatStatusRequest(fi FileInfo) string {
	return string(CmdStatus) + " " + fi.String()
}
