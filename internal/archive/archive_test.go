package archive

import (
	"bytes"
	"strings"
	"testing"
)

// buildAr constructs a minimal ar-format archive from (name, data) pairs,
// for tests, keeping fixtures built in Go rather
// than checking in binary blobs.
func buildAr(members []Member) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	for _, m := range members {
		name := m.Name + "/"
		if len(name) > 16 {
			name = name[:16]
		}
		hdr := make([]byte, headerSize)
		copy(hdr, []byte(name))
		for i := len(name); i < 16; i++ {
			hdr[i] = ' '
		}
		for i := 16; i < 48; i++ {
			hdr[i] = ' '
		}
		sizeStr := []byte(strings.TrimRight((string)(itoaPad(len(m.Data))), ""))
		copy(hdr[48:58], padRight(string(sizeStr), 10))
		hdr[58] = '`'
		hdr[59] = '\n'
		buf.Write(hdr)
		buf.Write(m.Data)
		if len(m.Data)%2 == 1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func itoaPad(n int) []byte {
	return []byte(padRight(itoa(n), 10))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func TestWalk_TwoMembers(t *testing.T) {
	data := buildAr([]Member{
		{Name: "a.o", Data: []byte("aaaa")},
		{Name: "b.o", Data: []byte("bbbbb")},
	})

	members, err := Walk(data)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}
	if members[0].Name != "a.o" || string(members[0].Data) != "aaaa" {
		t.Errorf("member[0] = %+v", members[0])
	}
	if members[1].Name != "b.o" || string(members[1].Data) != "bbbbb" {
		t.Errorf("member[1] = %+v", members[1])
	}
}

func TestWalk_NotAnArchive(t *testing.T) {
	if _, err := Walk([]byte("not an archive")); err == nil {
		t.Fatal("expected error for non-ar data")
	}
}

func TestSniff(t *testing.T) {
	data := buildAr(nil)
	if !Sniff(data) {
		t.Error("Sniff() = false, want true for valid ar magic")
	}
	if Sniff([]byte("garbage")) {
		t.Error("Sniff() = true, want false for garbage")
	}
}

func TestWalk_TruncatedHeader(t *testing.T) {
	data := []byte(magic + "short")
	if _, err := Walk(data); err != nil {
		t.Fatalf("Walk on short trailing data should not error, got %v", err)
	}
}
