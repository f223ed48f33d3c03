package heuristic

import (
	"reflect"
	"strings"
	"testing"
)

func TestScan_FindsWhitelistedPaths(t *testing.T) {
	data := []byte("garbage\x00\x01/usr/src/foo/bar.c\x00\x00noise/opt/build/lib.rs\xff\xfe")
	got := Scan(data, 0)
	want := []string{"/opt/build/lib.rs", "/usr/src/foo/bar.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScan_IgnoresNonWhitelistedExtensions(t *testing.T) {
	data := []byte("/etc/passwd\x00/usr/bin/ls\x00")
	got := Scan(data, 0)
	if len(got) != 0 {
		t.Errorf("Scan() = %v, want empty (no whitelisted extensions present)", got)
	}
}

func TestScan_RespectsWindow(t *testing.T) {
	padding := strings.Repeat("\x00", 100)
	data := []byte(padding + "/a/b/c.c")
	if got := Scan(data, 10); len(got) != 0 {
		t.Errorf("Scan() with small window = %v, want empty (match lies outside window)", got)
	}
	if got := Scan(data, 0); len(got) != 1 {
		t.Errorf("Scan() with default window = %v, want one match", got)
	}
}

func TestScan_Dedup(t *testing.T) {
	data := []byte("/a/b.c\x00/a/b.c\x00")
	got := Scan(data, 0)
	if len(got) != 1 {
		t.Errorf("Scan() = %v, want one deduplicated match", got)
	}
}
