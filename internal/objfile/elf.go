package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/hex"
	"strings"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

func decodeELF(data []byte) (facts *ObjectFacts, err error) {
	defer recoverTruncated(&err)

	f, ferr := elf.NewFile(bytes.NewReader(data))
	if ferr != nil {
		return nil, xerrors.Errorf("objfile: elf: %v: %w", ferr, ErrTruncated)
	}
	defer func() { _ = f.Close() }()

	facts = &ObjectFacts{
		Format: FormatELF,
		Arch:   f.Machine.String(),
	}

	switch f.Class {
	case elf.ELFCLASS32:
		facts.Bits = 32
	case elf.ELFCLASS64:
		facts.Bits = 64
	}
	if f.Data == elf.ELFDATA2MSB {
		facts.Endian = "big"
	} else {
		facts.Endian = "little"
	}

	facts.EntryPoint = f.Entry
	facts.IsPIE = f.Type == elf.ET_DYN

	for _, sec := range f.Sections {
		facts.Sections = append(facts.Sections, model.Section{
			Name:  sec.Name,
			Size:  sec.Size,
			Flags: sec.Flags.String(),
		})
		if sec.Name == ".debug_info" || sec.Name == ".zdebug_info" {
			facts.DebugSectionPresence = true
		}
	}

	facts.Needed, _ = f.DynString(elf.DT_NEEDED)
	facts.RunPaths = elfRunPaths(f)

	facts.Symbols = dedupSymbols(elfSymbols(f))
	facts.IsStripped = len(facts.Symbols) == 0

	if bid, ok := elfBuildID(f); ok {
		facts.BuildID = bid
	}

	return facts, nil
}

// elfRunPaths collects the object's embedded library search path:
// DT_RUNPATH when present, else the older DT_RPATH, each entry split on
// the ':' list separator.
func elfRunPaths(f *elf.File) []string {
	raw, _ := f.DynString(elf.DT_RUNPATH)
	if len(raw) == 0 {
		raw, _ = f.DynString(elf.DT_RPATH)
	}
	var out []string
	for _, r := range raw {
		for _, dir := range strings.Split(r, ":") {
			if dir != "" {
				out = append(out, dir)
			}
		}
	}
	return out
}

func elfSymbols(f *elf.File) []model.Symbol {
	var out []model.Symbol

	appendSyms := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Name == "" {
				continue
			}
			kind := model.SymbolDefined
			bind := elf.ST_BIND(s.Info)
			switch {
			case s.Section == elf.SHN_UNDEF:
				kind = model.SymbolUndefined
			case bind == elf.STB_WEAK:
				kind = model.SymbolWeak
			}
			out = append(out, model.Symbol{
				Name:    s.Name,
				Kind:    kind,
				Binding: bind.String(),
				Size:    s.Size,
			})
		}
	}

	if syms, err := f.Symbols(); err == nil {
		appendSyms(syms)
	}
	if dynSyms, err := f.DynamicSymbols(); err == nil {
		appendSyms(dynSyms)
	}
	return out
}

// elfBuildID extracts the GNU build-id note, if present, matching the
// format readelf/eu-readelf report (lowercase hex).
func elfBuildID(f *elf.File) (string, bool) {
	sec := f.Section(".note.gnu.build-id")
	if sec == nil {
		return "", false
	}
	data, err := sec.Data()
	if err != nil || len(data) < 16 {
		return "", false
	}
	// ELF note: namesz(4) descsz(4) type(4) name(namesz, padded) desc(descsz, padded)
	namesz := leUint32(data[0:4])
	descsz := leUint32(data[4:8])
	off := 12 + align4(namesz)
	if off+descsz > uint32(len(data)) {
		return "", false
	}
	return hex.EncodeToString(data[off : off+descsz]), true
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}
