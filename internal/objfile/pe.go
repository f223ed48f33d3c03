package objfile

import (
	"bytes"
	"debug/pe"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

func decodePE(data []byte) (facts *ObjectFacts, err error) {
	defer recoverTruncated(&err)

	f, ferr := pe.NewFile(bytes.NewReader(data))
	if ferr != nil {
		return nil, xerrors.Errorf("objfile: pe: %v: %w", ferr, ErrTruncated)
	}
	defer func() { _ = f.Close() }()

	facts = &ObjectFacts{Format: FormatPE}

	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		facts.Arch, facts.Bits = "amd64", 64
	case pe.IMAGE_FILE_MACHINE_I386:
		facts.Arch, facts.Bits = "386", 32
	case pe.IMAGE_FILE_MACHINE_ARM64:
		facts.Arch, facts.Bits = "arm64", 64
	default:
		facts.Arch = "unknown"
	}
	facts.Endian = "little" // PE is always little-endian

	for _, sec := range f.Sections {
		facts.Sections = append(facts.Sections, model.Section{
			Name: sec.Name,
			Size: uint64(sec.Size),
		})
		if sec.Name == ".debug" || sec.Name == ".debug_info" {
			facts.DebugSectionPresence = true
		}
	}

	facts.Needed = peImports(f)

	var syms []model.Symbol
	for _, s := range f.Symbols {
		if s.Name == "" {
			continue
		}
		kind := model.SymbolDefined
		if s.SectionNumber == 0 {
			kind = model.SymbolUndefined
		}
		syms = append(syms, model.Symbol{Name: s.Name, Kind: kind, Size: uint64(s.Value)})
	}
	facts.Symbols = dedupSymbols(syms)
	facts.IsStripped = len(facts.Symbols) == 0

	if oh64, ok := f.OptionalHeader.(*pe.OptionalHeader64); ok {
		facts.EntryPoint = uint64(oh64.AddressOfEntryPoint)
		facts.IsPIE = oh64.DllCharacteristics&pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE != 0
	} else if oh32, ok := f.OptionalHeader.(*pe.OptionalHeader32); ok {
		facts.EntryPoint = uint64(oh32.AddressOfEntryPoint)
		facts.IsPIE = oh32.DllCharacteristics&pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE != 0
	}

	return facts, nil
}

// peImports returns the DLL names this PE imports from, the PE analogue of
// ELF's DT_NEEDED / Mach-O's LC_LOAD_DYLIB.
func peImports(f *pe.File) []string {
	names, err := f.ImportedLibraries()
	if err != nil {
		return nil
	}
	return names
}
