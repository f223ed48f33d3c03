// Package pkgprobe matches a file path against the platform's package-
// manager databases to recover supplier/license/PURL metadata. It
// is side-effect-free and performs no network access; a failure to read a
// package database degrades to NotFound rather than failing the probe.
package pkgprobe

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/heimdall-sbom/heimdall/internal/purl"
	"github.com/heimdall-sbom/heimdall/internal/supplier"
)

// Match is the result of a successful probe.
type Match struct {
	PackageName string
	Version     string
	License     string
	Supplier    string
	Distro      string
	PURL        *purl.PURL
}

// NotFound is the zero Match; Probe callers check (Match{}, false).

// Prober looks up file paths against one or more package databases,
// caching results by absolute path for the lifetime of a run.
type Prober struct {
	roots []root // ordered list of database backends to try

	mu    sync.RWMutex
	cache map[string]Match
	found map[string]bool
}

type root struct {
	name  string
	query func(path string) (Match, bool)
}

// New returns a Prober wired to the standard Linux/macOS package database
// locations. dbRoot overrides the filesystem root the backends read from
// (normally "/"); tests pass a temp directory.
func New(dbRoot string) *Prober {
	if dbRoot == "" {
		dbRoot = "/"
	}
	p := &Prober{
		cache: make(map[string]Match),
		found: make(map[string]bool),
	}
	p.roots = []root{
		{"dpkg", p.queryDpkg(dbRoot)},
		{"rpm", p.queryRPM(dbRoot)},
		{"pacman", p.queryPacman(dbRoot)},
		{"homebrew", p.queryHomebrew(dbRoot)},
	}
	return p
}

// Probe resolves path against every configured backend in order, returning
// the first match. It never returns an error: an unreadable database is
// silently skipped: a failure to read a package DB is not fatal.
func (p *Prober) Probe(path string) (Match, bool) {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	p.mu.RLock()
	if m, ok := p.cache[path]; ok {
		found := p.found[path]
		p.mu.RUnlock()
		return m, found
	}
	p.mu.RUnlock()

	for _, r := range p.roots {
		if m, ok := r.query(path); ok {
			m.Supplier = canonicalSupplier(m)
			p.store(path, m, true)
			return m, true
		}
	}
	p.store(path, Match{}, false)
	return Match{}, false
}

// canonicalSupplier folds a backend's raw distro/maintainer metadata
// into the supplier string SBOM output carries: the raw maintainer when
// the database reported one, else the canonical organization for the
// distro.
func canonicalSupplier(m Match) string {
	return supplier.Resolve(m.Distro, "", m.Supplier).String()
}

func (p *Prober) store(path string, m Match, found bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[path] = m
	p.found[path] = found
}

// queryDpkg builds a backend that consults dpkg's per-package file lists
// under <root>/var/lib/dpkg/info/*.list, the canonical "which package owns
// this file" index on Debian-family systems.
func (p *Prober) queryDpkg(dbRoot string) func(string) (Match, bool) {
	infoDir := filepath.Join(dbRoot, "var", "lib", "dpkg", "info")
	statusFile := filepath.Join(dbRoot, "var", "lib", "dpkg", "status")

	return func(path string) (Match, bool) {
		entries, err := os.ReadDir(infoDir)
		if err != nil {
			return Match{}, false
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".list") {
				continue
			}
			pkg := strings.TrimSuffix(e.Name(), ".list")
			if idx := strings.IndexByte(pkg, ':'); idx >= 0 {
				pkg = pkg[:idx] // strip multi-arch qualifier, e.g. "libc6:amd64"
			}
			if !listContains(filepath.Join(infoDir, e.Name()), path) {
				continue
			}
			m := Match{PackageName: pkg, Distro: "debian"}
			fillDpkgStatus(statusFile, pkg, &m)
			m.PURL = purl.FromPackageProbe(purl.TypeDebian, "debian", pkg, m.Version)
			return m, true
		}
		return Match{}, false
	}
}

func listContains(listPath, target string) bool {
	f, err := os.Open(listPath)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if sc.Text() == target {
			return true
		}
	}
	return false
}

// fillDpkgStatus best-effort reads Version/Maintainer out of dpkg's status
// file for pkg. A missing or unparseable status file leaves m unchanged.
func fillDpkgStatus(statusFile, pkg string, m *Match) {
	f, err := os.Open(statusFile)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	inPkg := false
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "Package: "):
			inPkg = strings.TrimPrefix(line, "Package: ") == pkg
		case inPkg && strings.HasPrefix(line, "Version: "):
			m.Version = strings.TrimPrefix(line, "Version: ")
		case inPkg && strings.HasPrefix(line, "Maintainer: "):
			m.Supplier = strings.TrimPrefix(line, "Maintainer: ")
		case line == "":
			inPkg = false
		}
	}
}

// queryRPM builds a best-effort backend over a pre-built path-prefix
// index. Reading the BerkeleyDB/sqlite rpmdb directly would need cgo, so this
// is documented as a file-prefix heuristic rather than a real rpm
// database reader: it reads <root>/var/lib/rpm/heimdall-filemap (a cached
// "rpm -ql" dump, one "<package> <path>" pair per line) when present.
func (p *Prober) queryRPM(dbRoot string) func(string) (Match, bool) {
	mapFile := filepath.Join(dbRoot, "var", "lib", "rpm", "heimdall-filemap")
	return func(path string) (Match, bool) {
		f, err := os.Open(mapFile)
		if err != nil {
			return Match{}, false
		}
		defer func() { _ = f.Close() }()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			fields := strings.SplitN(sc.Text(), " ", 2)
			if len(fields) != 2 || fields[1] != path {
				continue
			}
			pkg, version := splitRPMNevra(fields[0])
			m := Match{PackageName: pkg, Version: version, Distro: "fedora"}
			m.PURL = purl.FromPackageProbe(purl.TypeRPM, "fedora", pkg, version)
			return m, true
		}
		return Match{}, false
	}
}

// splitRPMNevra splits a "name-version-release" rpm identifier into name
// and version, best-effort (rpm NEVRA strings are ambiguous without the
// package database's own field separators).
func splitRPMNevra(nevra string) (name, version string) {
	idx := strings.LastIndexByte(nevra, '-')
	if idx < 0 {
		return nevra, ""
	}
	return nevra[:idx], nevra[idx+1:]
}

// queryPacman builds a backend over Arch Linux's per-package file lists at
// <root>/var/lib/pacman/local/<pkg>-<version>/files.
func (p *Prober) queryPacman(dbRoot string) func(string) (Match, bool) {
	localDir := filepath.Join(dbRoot, "var", "lib", "pacman", "local")
	return func(path string) (Match, bool) {
		entries, err := os.ReadDir(localDir)
		if err != nil {
			return Match{}, false
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			filesPath := filepath.Join(localDir, e.Name(), "files")
			rel := strings.TrimPrefix(path, dbRoot)
			rel = strings.TrimPrefix(rel, string(filepath.Separator))
			if !pacmanFilesContains(filesPath, rel) {
				continue
			}
			name, version := splitRPMNevra(e.Name()) // same "name-version" shape
			m := Match{PackageName: name, Version: version, Distro: "archlinux"}
			m.PURL = purl.FromPackageProbe(purl.TypePacman, "archlinux", name, version)
			return m, true
		}
		return Match{}, false
	}
}

func pacmanFilesContains(filesPath, rel string) bool {
	f, err := os.Open(filesPath)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	inFiles := false
	for sc.Scan() {
		line := sc.Text()
		if line == "%FILES%" {
			inFiles = true
			continue
		}
		if strings.HasPrefix(line, "%") {
			inFiles = false
			continue
		}
		if inFiles && line == rel {
			return true
		}
	}
	return false
}

// queryHomebrew builds a backend that matches file paths under
// <root>/opt/homebrew/Cellar/<formula>/<version>/ or the Intel-prefix
// equivalent <root>/usr/local/Cellar/....
func (p *Prober) queryHomebrew(dbRoot string) func(string) (Match, bool) {
	cellars := []string{
		filepath.Join(dbRoot, "opt", "homebrew", "Cellar"),
		filepath.Join(dbRoot, "usr", "local", "Cellar"),
	}
	return func(path string) (Match, bool) {
		for _, cellar := range cellars {
			prefix := cellar + string(filepath.Separator)
			if !strings.HasPrefix(path, prefix) {
				continue
			}
			rest := strings.TrimPrefix(path, prefix)
			parts := strings.SplitN(rest, string(filepath.Separator), 3)
			if len(parts) < 2 {
				continue
			}
			m := Match{PackageName: parts[0], Version: parts[1], Distro: "homebrew"}
			m.PURL = purl.FromPackageProbe(purl.TypeHomebrew, "", parts[0], parts[1])
			return m, true
		}
		return Match{}, false
	}
}
