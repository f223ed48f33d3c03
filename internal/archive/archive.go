// Package archive walks a POSIX ar-format static archive, yielding its
// member objects in archive order. The standard library has no
// archive/ar package, so this is a from-scratch reader against the
// fixed-size-header-plus-data-region layout shared by the ar family
// (.a, .lib, .deb containers).
package archive

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrTruncated mirrors the root sentinel without importing the root
// package, to avoid an import cycle; the orchestrator translates it.
var ErrTruncated = xerrors.New("truncated or malformed header")

const (
	magic         = "!<arch>\n"
	headerSize    = 60
	symbolIndex   = "/"
	symbolIndex64 = "/SYM64/"
	extNameTable  = "//"
)

// Member is one archive member: its name and raw bytes, in archive order.
// Special bookkeeping members (symbol index, extended filename table) are
// never returned as Members; they are consumed internally.
type Member struct {
	Name string
	Data []byte
}

// Sniff reports whether data begins with the ar magic string.
func Sniff(data []byte) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}

// Walk returns every object member of a static archive in on-disk
// order. Special members (symbol index "/" or "/SYM64/", and the GNU
// extended-filename table "//") are parsed for bookkeeping but never
// surfaced as Members.
func Walk(data []byte) ([]Member, error) {
	if !Sniff(data) {
		return nil, xerrors.Errorf("archive: missing ar magic: %w", ErrTruncated)
	}

	pos := len(magic)
	var extNames []byte
	var members []Member

	for pos < len(data) {
		// ar headers are padded to an even offset.
		if pos%2 == 1 {
			pos++
		}
		if pos+headerSize > len(data) {
			break
		}

		hdr := data[pos : pos+headerSize]
		pos += headerSize

		name := strings.TrimRight(string(hdr[0:16]), " ")
		sizeField := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("archive: member %q: bad size field %q: %w", name, sizeField, ErrTruncated)
		}
		if size < 0 || pos+int(size) > len(data) {
			return nil, xerrors.Errorf("archive: member %q: size %d exceeds archive bounds: %w", name, size, ErrTruncated)
		}

		body := data[pos : pos+int(size)]
		pos += int(size)

		switch {
		case name == symbolIndex || name == symbolIndex64:
			continue // symbol table: not a decodable object member
		case name == extNameTable:
			extNames = body
			continue
		case strings.HasPrefix(name, "/") && len(name) > 1:
			// GNU extended name: "/<offset>" into the name table.
			if off, err := strconv.Atoi(name[1:]); err == nil && off >= 0 && off < len(extNames) {
				name = gnuExtName(extNames, off)
			}
		default:
			name = strings.TrimSuffix(name, "/") // BSD/SysV trailing slash convention
		}

		members = append(members, Member{Name: name, Data: body})
	}

	return members, nil
}

// gnuExtName extracts one '\n'-terminated entry from the GNU extended
// filename table starting at off.
func gnuExtName(table []byte, off int) string {
	rest := table[off:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSuffix(string(rest), "/")
}
