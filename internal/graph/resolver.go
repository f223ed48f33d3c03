package graph

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// resolver resolves a shared-library name to a filesystem path using the
// platform's search order. The dependent object's own directory is tried
// first, then extra directories supplied by the caller
// (Options.SearchPaths), then the environment-variable search path, then
// the dependent object's own embedded RUNPATH/rpath
// entries, then the loader cache (/etc/ld.so.cache on Linux), then the
// platform's standard directories. The first existing, readable match
// wins; ties are broken by search-path order.
type resolver struct {
	extraPaths []string
	envPaths   []string
	stdPaths   []string

	ldCachePath string
	ldCacheOnce sync.Once
	ldCache     map[string]string // soname -> absolute path
}

// newResolver builds a resolver for the current platform. extraPaths are
// caller-supplied and searched right after the dependent's own directory,
// ahead of the platform defaults.
func newResolver(extraPaths []string) *resolver {
	return &resolver{
		extraPaths:  extraPaths,
		envPaths:    envSearchPaths(),
		stdPaths:    standardSearchPaths(),
		ldCachePath: "/etc/ld.so.cache",
	}
}

// envSearchPaths reads the platform's library-path environment variable,
// split on the platform's list separator.
func envSearchPaths() []string {
	var envVar string
	switch runtime.GOOS {
	case "darwin":
		envVar = "DYLD_LIBRARY_PATH"
	case "windows":
		envVar = "PATH"
	default:
		envVar = "LD_LIBRARY_PATH"
	}
	val := os.Getenv(envVar)
	if val == "" {
		return nil
	}
	return strings.Split(val, string(os.PathListSeparator))
}

// standardSearchPaths returns the platform's well-known library directories,
// tried last, after every more specific source.
func standardSearchPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/usr/lib", "/usr/local/lib", "/opt/homebrew/lib"}
	case "windows":
		return []string{`C:\Windows\System32`, `C:\Windows`}
	default:
		return []string{"/lib", "/usr/lib", "/lib64", "/usr/lib64", "/usr/local/lib"}
	}
}

// resolve finds name somewhere in r's search order. fromPath is the
// requesting component's own location, searched first so a dependency
// sitting next to its dependent (the common case for a freshly built tree)
// resolves without touching the environment or filesystem defaults.
// runPaths are the dependent object's embedded DT_RUNPATH/LC_RPATH
// entries; $ORIGIN tokens are expanded against the dependent's directory.
//
// A bare name with no directory separator is tried under every search
// directory; a name that already contains a path (absolute, or relative
// with a directory component, e.g. an rpath-qualified DT_NEEDED entry) is
// tested directly and otherwise treated as unresolved, since that path is
// not itself subject to the search order.
func (r *resolver) resolve(name, fromPath string, runPaths []string) (string, bool) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		if fileReadable(name) {
			return name, true
		}
		return "", false
	}

	if fromPath != "" {
		if candidate := filepath.Join(filepath.Dir(fromPath), name); fileReadable(candidate) {
			return candidate, true
		}
	}

	for _, dir := range r.extraPaths {
		if candidate := filepath.Join(dir, name); fileReadable(candidate) {
			return candidate, true
		}
	}
	for _, dir := range r.envPaths {
		if candidate := filepath.Join(dir, name); fileReadable(candidate) {
			return candidate, true
		}
	}
	for _, dir := range runPaths {
		dir = expandOrigin(dir, fromPath)
		if candidate := filepath.Join(dir, name); fileReadable(candidate) {
			return candidate, true
		}
	}
	if path, ok := r.lookupLdCache(name); ok && fileReadable(path) {
		return path, true
	}
	for _, dir := range r.stdPaths {
		if candidate := filepath.Join(dir, name); fileReadable(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// expandOrigin substitutes the $ORIGIN / ${ORIGIN} token a RUNPATH entry
// may carry with the directory of the object that carries it.
func expandOrigin(dir, fromPath string) string {
	if !strings.Contains(dir, "$ORIGIN") && !strings.Contains(dir, "${ORIGIN}") {
		return dir
	}
	origin := filepath.Dir(fromPath)
	dir = strings.ReplaceAll(dir, "${ORIGIN}", origin)
	return strings.ReplaceAll(dir, "$ORIGIN", origin)
}

// lookupLdCache consults the loader cache, parsed lazily on first use.
// Only meaningful on Linux; elsewhere (and whenever the cache is missing
// or unparseable) the lookup degrades to a miss.
func (r *resolver) lookupLdCache(name string) (string, bool) {
	r.ldCacheOnce.Do(func() {
		r.ldCache = parseLdSoCache(r.ldCachePath)
	})
	path, ok := r.ldCache[name]
	return path, ok
}

// fileReadable reports whether path names a regular file this process can
// stat. Extract itself is responsible for actually reading and decoding it;
// resolve only needs to pick the winning candidate.
func fileReadable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
