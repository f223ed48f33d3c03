// Package extract is the metadata extractor orchestrator: it runs
// every extraction strategy over a single artifact in priority order and
// merges their findings into one Component. Extract calls the strategies
// one after another in its own body; only the language adapters are taken
// from a list (Options.LanguageAdapters), and there is no strategy table.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/archive"
	"github.com/heimdall-sbom/heimdall/internal/dwarfinfo"
	"github.com/heimdall-sbom/heimdall/internal/hashio"
	"github.com/heimdall-sbom/heimdall/internal/heuristic"
	"github.com/heimdall-sbom/heimdall/internal/langadapter"
	"github.com/heimdall-sbom/heimdall/internal/model"
	"github.com/heimdall-sbom/heimdall/internal/objfile"
	"github.com/heimdall-sbom/heimdall/internal/pkgprobe"
)

// Sentinels mirrored from the root package to avoid an import cycle; the
// Core API translates these 1:1 at the boundary.
var (
	ErrIoError           = xerrors.New("io error")
	ErrUnsupportedFormat = xerrors.New("unsupported object format")
	ErrCancelled         = xerrors.New("operation cancelled")
)

// DefaultTimeout is the per-artifact wall-clock budget.
const DefaultTimeout = 60 * time.Second

// Options configures one Extract call.
type Options struct {
	MaxFileSize         int64         // size cap; 0 selects hashio.DefaultMaxSize
	HeuristicWindow     int           // scan window; 0 selects heuristic.DefaultWindowBytes
	DisableDWARF        bool          // forces the heuristic fallback path on
	Timeout             time.Duration // 0 selects DefaultTimeout
	AliDir              string        // Ada .ali companion directory
	Prober              *pkgprobe.Prober
	LanguageAdapters    []langadapter.Adapter
}

// Extract runs the full strategy pipeline for one artifact, returning
// a single merged Component. A file that cannot be read or hashed
// (IoError, TooLarge), an unrecognized object format (UnsupportedFormat),
// an archive that cannot be walked, and a context that is done before
// decoding or after the language adapters (Cancelled) are returned as
// errors. A context that is done right after decoding yields the partial
// Component with "extract.timeout" set. Every other strategy failure
// degrades to an "extract.<strategy>.error" property and extraction
// continues.
func Extract(ctx context.Context, path string, opts Options) (*model.Component, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, xerrors.Errorf("extract: resolve %s: %w", path, ErrIoError)
	}

	// Resolve, stat, size cap, single buffered read.
	data, err := hashio.ReadAll(absPath, opts.MaxFileSize)
	if err != nil {
		return nil, xerrors.Errorf("extract: read %s: %w", absPath, err)
	}

	c := model.NewComponent()
	c.FilePath = absPath
	c.FileSize = int64(len(data))

	if ctx.Err() != nil {
		return nil, xerrors.Errorf("extract: %s: %w", absPath, ErrCancelled)
	}

	// Hashes.
	hashes, herr := hashio.ComputeHashes(absPath, hashio.AllAlgorithms, opts.MaxFileSize)
	if herr != nil {
		return nil, xerrors.Errorf("extract: hash %s: %w", absPath, herr)
	}
	c.Hashes = hashes

	// Classify. Archive members are walked and merged; otherwise
	// the buffer is decoded as an object file.
	var facts *objfile.ObjectFacts
	var debugFacts *dwarfinfo.DebugFacts

	if archive.Sniff(data) {
		// An archive that cannot be walked at all has no fallback
		// strategy to try instead, so it fails Extract outright; callers
		// that skip failed dependencies but fail on a failed root apply that
		// distinction themselves, since only they know an artifact's
		// position in the dependency graph.
		if aerr := extractArchive(ctx, c, data); aerr != nil {
			return nil, aerr
		}
	} else {
		facts, err = objfile.Decode(data)
		if err != nil {
			return nil, xerrors.Errorf("extract: decode %s: %w", absPath, ErrUnsupportedFormat)
		}
		applyObjectFacts(c, facts)

		// DWARF, only when debug sections are present and
		// DWARF isn't disabled.
		if facts.DebugSectionPresence && !opts.DisableDWARF {
			debugFacts, err = dwarfinfo.Extract(data)
			if err != nil {
				c.SetProperty("extract.dwarf.error", err.Error())
			} else {
				applyDebugFacts(c, debugFacts)
			}
		}
	}

	if ctx.Err() != nil {
		c.SetProperty("extract.timeout", "true")
		return c, nil
	}

	// Heuristic fallback, only if no source files yet.
	if len(c.SourceFiles) == 0 {
		if found := heuristic.Scan(data, opts.HeuristicWindow); len(found) > 0 {
			c.SourceFiles = found
			c.SetProperty("source.origin", "heuristic")
		}
	}

	// Package probe.
	if opts.Prober != nil {
		if m, ok := opts.Prober.Probe(absPath); ok {
			applyPackageMatch(c, m)
		}
	}

	// Language adapters.
	adapters := opts.LanguageAdapters
	if adapters == nil {
		adapters = langadapter.Default()
	}
	langCtx := langadapter.Context{AliDir: opts.AliDir, Data: data}
	for _, a := range adapters {
		if !a.Recognize(absPath, data) {
			continue
		}
		if aerr := a.Enrich(c, langCtx); aerr != nil {
			c.SetProperty("extract."+a.Name()+".error", aerr.Error())
		}
	}

	// Finalize identity. name/version/license default derivations
	// happen here when nothing upstream supplied them.
	if c.Name == "" {
		c.Name = filepath.Base(absPath)
	}
	if c.License == "" {
		c.License = model.NoAssertion
	}
	if c.Kind == "" {
		c.Kind = classifyKind(facts)
	}

	if ctx.Err() != nil {
		return nil, xerrors.Errorf("extract: %s: %w", absPath, ErrCancelled)
	}

	return c, nil
}

func extractArchive(ctx context.Context, c *model.Component, data []byte) error {
	members, err := archive.Walk(data)
	if err != nil {
		return xerrors.Errorf("extract: archive walk: %w", err)
	}

	c.Kind = model.KindStaticLibrary
	var memberNames []string
	for _, m := range members {
		memberNames = append(memberNames, m.Name)

		if ctx.Err() != nil {
			return xerrors.Errorf("extract: archive member %s: %w", m.Name, ErrCancelled)
		}

		facts, derr := objfile.Decode(m.Data)
		if derr != nil {
			c.SetProperty("extract.archive."+m.Name+".error", derr.Error())
			continue
		}
		applyObjectFacts(c, facts)

		if facts.DebugSectionPresence {
			if df, derr := dwarfinfo.Extract(m.Data); derr == nil {
				applyDebugFacts(c, df)
			}
		}
	}

	if len(memberNames) > 0 {
		c.SetProperty("archive.members", strings.Join(memberNames, ","))
	}
	return nil
}

func applyObjectFacts(c *model.Component, facts *objfile.ObjectFacts) {
	if facts == nil {
		return
	}
	if c.Kind == "" {
		c.Kind = classifyKind(facts)
	}
	c.Sections = append(c.Sections, facts.Sections...)
	c.Symbols = append(c.Symbols, facts.Symbols...)
	c.Needed = append(c.Needed, facts.Needed...)
	c.RunPaths = append(c.RunPaths, facts.RunPaths...)
}

func applyDebugFacts(c *model.Component, facts *dwarfinfo.DebugFacts) {
	if facts == nil {
		return
	}
	c.SourceFiles = append(c.SourceFiles, facts.SourceFiles...)
	c.Functions = append(c.Functions, facts.Functions...)
	c.CompileUnits = append(c.CompileUnits, facts.CompileUnits...)
	if facts.Partial {
		c.SetProperty("dwarf.partial", "true")
	}
}

func applyPackageMatch(c *model.Component, m pkgprobe.Match) {
	// Merge precedence: package probe > DWARF > object
	// decoder > heuristic. Applying it last, after all lower-precedence
	// strategies have already set their values, implements that order.
	if m.PackageName != "" {
		c.Name = m.PackageName
	}
	if m.Version != "" {
		c.Version = m.Version
	}
	if m.Supplier != "" {
		c.Supplier = m.Supplier
	}
	if m.License != "" {
		c.License = m.License
	}
	if m.PURL != nil {
		c.PackagePURL = m.PURL.String()
	}
}

func classifyKind(facts *objfile.ObjectFacts) model.Kind {
	if facts == nil {
		return model.KindObject
	}
	switch {
	case facts.IsPIE && len(facts.Needed) > 0:
		return model.KindExecutable
	case facts.EntryPoint != 0:
		return model.KindExecutable
	case len(facts.Needed) > 0:
		return model.KindSharedLibrary
	default:
		return model.KindObject
	}
}
