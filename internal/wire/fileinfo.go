package wire

import (
	"strconv"
	"strings"
)

// FileInfo describes a file as advertised on the wire: its name, the
// address of the leaf that authoritatively owns it, a monotonically
// non-decreasing version, and (pull model only) a validity bit.
//
// Text form: "name,origin,version[,valid]".
type FileInfo struct {
	Name    string
	Origin  Address
	Version int64
	Valid   bool
}

// ParseFileInfo parses the comma-separated FileInfo record. The trailing
// "valid" field is optional on the wire (String always emits it); when
// absent, Valid defaults to true.
func ParseFileInfo(s string) (FileInfo, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 && len(fields) != 4 {
		return FileInfo{}, malformed(s, "fileinfo record must have 3 or 4 comma-separated fields")
	}

	origin, err := ParseAddress(fields[1])
	if err != nil {
		return FileInfo{}, malformed(s, "bad origin address: "+err.Error())
	}

	version, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return FileInfo{}, malformed(s, "bad version: "+err.Error())
	}

	valid := true
	if len(fields) == 4 {
		valid, err = strconv.ParseBool(fields[3])
		if err != nil {
			return FileInfo{}, malformed(s, "bad valid flag: "+err.Error())
		}
	}

	return FileInfo{
		Name:    fields[0],
		Origin:  origin,
		Version: version,
		Valid:   valid,
	}, nil
}

// String renders the FileInfo in its 4-field wire form.
func (fi FileInfo) String() string {
	return fi.Name + "," + fi.Origin.String() + "," + strconv.FormatInt(fi.Version, 10) + "," + strconv.FormatBool(fi.Valid)
}
