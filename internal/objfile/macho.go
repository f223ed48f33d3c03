package objfile

import (
	"bytes"
	"debug/macho"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

func decodeMachO(data []byte) (facts *ObjectFacts, err error) {
	defer recoverTruncated(&err)

	// A fat (universal) binary carries multiple architecture slices; the
	// decoder only produces one ObjectFacts per artifact, so the first
	// slice wins, matching how package probes identify "the" architecture
	// of a fat binary in practice.
	if fat, ferr := macho.NewFatFile(bytes.NewReader(data)); ferr == nil && len(fat.Arches) > 0 {
		defer func() { _ = fat.Close() }()
		return decodeMachOFile(fat.Arches[0].File)
	}

	f, ferr := macho.NewFile(bytes.NewReader(data))
	if ferr != nil {
		return nil, xerrors.Errorf("objfile: macho: %v: %w", ferr, ErrTruncated)
	}
	defer func() { _ = f.Close() }()
	return decodeMachOFile(f)
}

func decodeMachOFile(f *macho.File) (*ObjectFacts, error) {
	facts := &ObjectFacts{
		Format: FormatMachO,
		Arch:   f.Cpu.String(),
	}

	if f.Magic == macho.Magic64 {
		facts.Bits = 64
	} else {
		facts.Bits = 32
	}
	facts.Endian = "little"
	if f.ByteOrder.String() == "BigEndian" {
		facts.Endian = "big"
	}

	facts.IsPIE = f.Flags&macho.FlagPIE != 0

	for _, sec := range f.Sections {
		facts.Sections = append(facts.Sections, model.Section{
			Name: sec.Name,
			Size: uint64(sec.Size),
		})
		if sec.Name == "__debug_info" {
			facts.DebugSectionPresence = true
		}
	}

	for _, l := range f.Loads {
		switch cmd := l.(type) {
		case *macho.Dylib:
			facts.Needed = append(facts.Needed, cmd.Name)
		case *macho.Rpath:
			facts.RunPaths = append(facts.RunPaths, cmd.Path)
		}
	}

	if f.Symtab != nil {
		var syms []model.Symbol
		for _, s := range f.Symtab.Syms {
			if s.Name == "" {
				continue
			}
			kind := model.SymbolDefined
			switch {
			case s.Type&0x0e == 0x00: // N_UNDF
				kind = model.SymbolUndefined
			case s.Type&0x01 != 0: // N_EXT + weak ref convention
				if s.Desc&0x0080 != 0 { // N_WEAK_DEF
					kind = model.SymbolWeak
				}
			}
			syms = append(syms, model.Symbol{Name: s.Name, Kind: kind})
		}
		facts.Symbols = dedupSymbols(syms)
	}
	facts.IsStripped = len(facts.Symbols) == 0

	return facts, nil
}
