// Package dwarfinfo extracts source files, functions, and compile units
// from an object file's DWARF debug sections, using the standard
// library's debug/dwarf, which already spans DWARF versions 2 through 5 —
// no separate DWARF dependency is needed.
package dwarfinfo

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"bytes"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// ErrTruncated mirrors the root sentinel, translated at the orchestrator
// boundary to avoid an import cycle.
var ErrTruncated = xerrors.New("truncated or malformed DWARF data")

// DebugFacts is the result of walking an object file's DWARF data.
type DebugFacts struct {
	SourceFiles  []string
	Functions    []model.Function
	CompileUnits []model.CompileUnit
	Partial      bool // true when parsing stopped early on damaged data
}

// Extract opens data with the format-appropriate debug/{elf,macho,pe}
// reader and walks every compile unit's line program and DIE tree. When
// DWARF data is absent it returns an empty, successful DebugFacts.
// When DWARF data is present but damaged, it returns whatever prefix
// parsed successfully with Partial set.
func Extract(data []byte) (*DebugFacts, error) {
	d, ok, err := openDWARF(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &DebugFacts{}, nil
	}
	return walk(d), nil
}

// walk visits every compile unit in d, collecting the line table's source
// files and the unit's subprogram DIEs.
func walk(d *dwarf.Data) *DebugFacts {
	facts := &DebugFacts{}
	seenFiles := make(map[string]bool)

	reader := d.Reader()
	for {
		entry, rerr := reader.Next()
		if rerr != nil {
			facts.Partial = true
			break
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		cu := compileUnitFrom(entry)
		facts.CompileUnits = append(facts.CompileUnits, cu)

		// The line table doubles as the decl_file index space, so it is
		// read before the DIE walk even when no line rows execute.
		var files []*dwarf.LineFile
		if lr, lerr := d.LineReader(entry); lerr == nil && lr != nil {
			files = lr.Files()
			for _, f := range files {
				if f == nil || f.Name == "" {
					continue
				}
				path := absoluteSourcePath(f)
				if !seenFiles[path] {
					seenFiles[path] = true
					facts.SourceFiles = append(facts.SourceFiles, path)
				}
			}
		}

		walkFunctions(d, entry, files, facts)
	}

	return facts
}

// openDWARF tries each object format's DWARF accessor in turn, returning
// ok=false (not an error) when the file has no debug sections at all.
func openDWARF(data []byte) (d *dwarf.Data, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("dwarfinfo: malformed header: %v: %w", r, ErrTruncated)
		}
	}()

	if f, ferr := elf.NewFile(bytes.NewReader(data)); ferr == nil {
		defer func() { _ = f.Close() }()
		if dd, derr := f.DWARF(); derr == nil {
			return dd, true, nil
		}
		return nil, false, nil
	}
	if f, ferr := macho.NewFile(bytes.NewReader(data)); ferr == nil {
		defer func() { _ = f.Close() }()
		if dd, derr := f.DWARF(); derr == nil {
			return dd, true, nil
		}
		return nil, false, nil
	}
	if f, ferr := pe.NewFile(bytes.NewReader(data)); ferr == nil {
		defer func() { _ = f.Close() }()
		if dd, derr := f.DWARF(); derr == nil {
			return dd, true, nil
		}
		return nil, false, nil
	}
	return nil, false, nil
}

func compileUnitFrom(entry *dwarf.Entry) model.CompileUnit {
	cu := model.CompileUnit{}
	if name, ok := entry.Val(dwarf.AttrName).(string); ok {
		cu.Name = name
	}
	if producer, ok := entry.Val(dwarf.AttrProducer).(string); ok {
		cu.Producer = producer
	}
	if lang, ok := entry.Val(dwarf.AttrLanguage).(int64); ok {
		cu.Language = languageName(lang)
	}
	return cu
}

// absoluteSourcePath returns the source path DWARF's LineFile reports,
// which debug/dwarf has already joined with its directory entry; no
// further joining is done, so a relative name stays relative.
func absoluteSourcePath(f *dwarf.LineFile) string {
	// debug/dwarf already folds the directory-table entry into f.Name for
	// both DWARF<=4 (directory index) and DWARF5 (DW_LNCT_path) line
	// tables, so the reported Name is already the joined path; relative
	// names (no leading toolchain-known root) are passed through as-is
	// rather than re-joined against cwd, since the compiling host's
	// filesystem layout isn't available to this reader.
	return f.Name
}

// walkFunctions visits every subprogram DIE nested (at any depth) under a
// compile unit DIE, emitting a Function for each named, defined
// subprogram DIE that has both a name and a low-pc.
func walkFunctions(d *dwarf.Data, cuEntry *dwarf.Entry, files []*dwarf.LineFile, facts *DebugFacts) {
	r := d.Reader()
	r.Seek(cuEntry.Offset)
	// Skip the compile_unit entry itself; Reader.Next after Seek returns it.
	if _, err := r.Next(); err != nil {
		return
	}

	depth := 0
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			return
		}
		if entry.Tag == 0 {
			// End-of-children marker.
			if depth == 0 {
				return
			}
			depth--
			continue
		}
		if entry.Children {
			depth++
		}

		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name, ok := entry.Val(dwarf.AttrName).(string)
		if !ok || name == "" {
			continue
		}
		if _, hasLowPC := entry.Val(dwarf.AttrLowpc).(uint64); !hasLowPC {
			continue
		}

		fn := model.Function{Name: name}
		if line, ok := entry.Val(dwarf.AttrDeclLine).(int64); ok {
			fn.Line = int(line)
		}
		if idx, ok := entry.Val(dwarf.AttrDeclFile).(int64); ok {
			if idx > 0 && idx < int64(len(files)) && files[idx] != nil {
				fn.SourceFile = absoluteSourcePath(files[idx])
			}
		}
		facts.Functions = append(facts.Functions, fn)
	}
}

// languageName maps a DWARF DW_LANG_* constant to a human-readable name,
// covering the languages the adapters care about plus the common C
// family.
func languageName(code int64) string {
	switch code {
	case 0x0001:
		return "C89"
	case 0x0002:
		return "C"
	case 0x0004:
		return "C++"
	case 0x001d:
		return "C11"
	case 0x0021:
		return "C++14"
	case 0x001c:
		return "Rust"
	case 0x0016:
		return "Go"
	case 0x001e:
		return "Swift"
	case 0x0003:
		return "Ada83"
	case 0x002e:
		return "Ada2005"
	default:
		return ""
	}
}
