// Package objfile decodes ELF, Mach-O, and PE object files into a
// format-agnostic ObjectFacts, built on the standard library's
// debug/elf, debug/macho, and debug/pe packages.
package objfile

import (
	"bytes"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// Format identifies the decoded object file's container format.
type Format string

const (
	FormatELF   Format = "ELF"
	FormatMachO Format = "Mach-O"
	FormatPE    Format = "PE"
)

var (
	ErrUnsupportedFormat = xerrors.New("unsupported object format")
	ErrTruncated         = xerrors.New("truncated or malformed header")
)

// ObjectFacts is the format-agnostic result of decoding one object
// file.
type ObjectFacts struct {
	Format               Format
	Arch                 string
	Bits                 int // 32 or 64
	Endian               string
	Sections             []model.Section
	Symbols              []model.Symbol
	Needed               []string
	RunPaths             []string
	BuildID              string
	EntryPoint           uint64
	IsPIE                bool
	IsStripped           bool
	DebugSectionPresence bool
}

// magic byte sequences used to classify a buffer before a full decode is
// attempted, so the orchestrator can route archives and objects cheaply.
var (
	elfMagic      = []byte{0x7f, 'E', 'L', 'F'}
	machoMagic32  = []byte{0xfe, 0xed, 0xfa, 0xce}
	machoMagic32R = []byte{0xce, 0xfa, 0xed, 0xfe}
	machoMagic64  = []byte{0xfe, 0xed, 0xfa, 0xcf}
	machoMagic64R = []byte{0xcf, 0xfa, 0xed, 0xfe}
	machoFatMagic = []byte{0xca, 0xfe, 0xba, 0xbe}
	peMagic       = []byte{'M', 'Z'}
)

// Sniff identifies which decoder should handle data, or returns
// ErrUnsupportedFormat. It never panics on short or malformed input.
func Sniff(data []byte) (Format, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], elfMagic):
		return FormatELF, nil
	case len(data) >= 4 && (bytes.Equal(data[:4], machoMagic32) || bytes.Equal(data[:4], machoMagic32R) ||
		bytes.Equal(data[:4], machoMagic64) || bytes.Equal(data[:4], machoMagic64R) ||
		bytes.Equal(data[:4], machoFatMagic)):
		return FormatMachO, nil
	case len(data) >= 2 && bytes.Equal(data[:2], peMagic):
		return FormatPE, nil
	default:
		return "", xerrors.Errorf("objfile: unrecognized magic: %w", ErrUnsupportedFormat)
	}
}

// Decode dispatches to the format-specific decoder after sniffing data's
// magic bytes. Bounds-checking of header fields happens inside each
// decoder, close to the debug/* calls that would otherwise panic on
// adversarial input.
func Decode(data []byte) (*ObjectFacts, error) {
	format, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatELF:
		return decodeELF(data)
	case FormatMachO:
		return decodeMachO(data)
	case FormatPE:
		return decodePE(data)
	default:
		return nil, xerrors.Errorf("objfile: %s: %w", format, ErrUnsupportedFormat)
	}
}

// recoverTruncated turns a debug/* panic (the stdlib decoders do panic on
// some malformed inputs despite documenting errors) into a Truncated error,
// since decoders must never panic on malformed input.
func recoverTruncated(errp *error) {
	if r := recover(); r != nil {
		*errp = xerrors.Errorf("objfile: malformed header: %v: %w", r, ErrTruncated)
	}
}

func dedupSymbols(in []model.Symbol) []model.Symbol {
	type key struct {
		name string
		kind model.SymbolKind
	}
	seen := make(map[key]bool, len(in))
	out := make([]model.Symbol, 0, len(in))
	for _, s := range in {
		k := key{s.Name, s.Kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
