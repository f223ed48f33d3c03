package graph

import (
	"bytes"
	"encoding/binary"
	"os"
)

// glibc's ld.so.cache "new format" layout: the magic+version string,
// a header with entry and string-table sizes, then fixed-size entries
// whose key/value fields are string-table offsets relative to the start
// of the new-format section. The new section either starts the file
// (standalone format) or is embedded after the legacy header, so the
// parser locates it by magic rather than assuming offset zero.
const ldCacheMagic = "glibc-ld.so.cache1.1"

const (
	ldCacheHeaderSize = 48 // magic(20) + nlibs(4) + len_strings(4) + flags/pad(4) + extension_offset(4) + unused(12)
	ldCacheEntrySize  = 24 // flags(4) + key(4) + value(4) + osversion(4) + hwcap(8)
)

// parseLdSoCache reads a glibc ld.so.cache file into a soname->path map.
// Any structural inconsistency abandons the parse and returns an empty
// map: the cache is an acceleration, never a correctness requirement, so
// a missing or foreign-format file degrades to "no cache hits".
func parseLdSoCache(path string) map[string]string {
	out := map[string]string{}

	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	base := bytes.Index(data, []byte(ldCacheMagic))
	if base < 0 || len(data) < base+ldCacheHeaderSize {
		return out
	}
	section := data[base:]

	nlibs := binary.LittleEndian.Uint32(section[20:24])
	entriesEnd := uint64(ldCacheHeaderSize) + uint64(nlibs)*ldCacheEntrySize
	if entriesEnd > uint64(len(section)) {
		return out
	}

	for i := uint64(0); i < uint64(nlibs); i++ {
		entry := section[ldCacheHeaderSize+i*ldCacheEntrySize:]
		key := binary.LittleEndian.Uint32(entry[4:8])
		value := binary.LittleEndian.Uint32(entry[8:12])

		name, ok := cString(section, key)
		if !ok {
			continue
		}
		libPath, ok := cString(section, value)
		if !ok {
			continue
		}
		// First entry wins: the loader orders the cache best-match first.
		if _, seen := out[name]; !seen {
			out[name] = libPath
		}
	}
	return out
}

// cString reads a NUL-terminated string at offset off, bounds-checked.
func cString(data []byte, off uint32) (string, bool) {
	if uint64(off) >= uint64(len(data)) {
		return "", false
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", false
	}
	return string(data[off : int(off)+end]), true
}
