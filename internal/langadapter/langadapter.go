// Package langadapter implements the language-specific artifact
// adapters: each is a polymorphic extractor over {Recognize, Enrich},
// run by the orchestrator after the general-purpose strategies. A
// missing or inapplicable adapter is a no-op.
package langadapter

import "github.com/heimdall-sbom/heimdall/internal/model"

// Adapter is the capability set every language adapter implements: a
// cheap recognizer over the path and raw bytes, and an enricher that
// folds findings into a Component. A flat dispatch table, not a class
// hierarchy.
type Adapter interface {
	// Name identifies the adapter for provenance properties.
	Name() string
	// Recognize reports whether this adapter applies to the artifact at
	// path given its decoded bytes.
	Recognize(path string, data []byte) bool
	// Enrich folds this adapter's findings into c. ctx carries ambient
	// inputs an adapter may need (e.g. a companion .ali directory).
	Enrich(c *model.Component, ctx Context) error
}

// Context carries the inputs an adapter may need beyond the artifact's own
// bytes — currently just the Ada .ali companion directory configured via
// the Core API's SetAliFilePath.
type Context struct {
	AliDir string
	Data   []byte // the artifact's decoded bytes, for adapters that need a second pass (e.g. Go buildinfo)
}

// Default returns the standard adapter set in the priority order the
// orchestrator runs them: Ada, Go buildinfo, then the Rust
// and Swift placeholders.
func Default() []Adapter {
	return []Adapter{
		&AdaAdapter{},
		&GoBuildInfoAdapter{},
		&RustAdapter{},
		&SwiftAdapter{},
	}
}

// RustAdapter is a no-op placeholder. Rust rlib metadata parsing needs
// a .rmeta reader that has
// no stable format or idiomatic Go reader; wiring it is future work,
// not something this adapter fakes.
type RustAdapter struct{}

func (a *RustAdapter) Name() string { return "rust" }
func (a *RustAdapter) Recognize(path string, data []byte) bool {
	return false
}
func (a *RustAdapter) Enrich(c *model.Component, ctx Context) error { return nil }

// SwiftAdapter is a documented no-op placeholder, for the same
// reason as RustAdapter: Swift reflection metadata parsing is out of reach
// of a pure-Go reader today.
type SwiftAdapter struct{}

func (a *SwiftAdapter) Name() string { return "swift" }
func (a *SwiftAdapter) Recognize(path string, data []byte) bool {
	return false
}
func (a *SwiftAdapter) Enrich(c *model.Component, ctx Context) error { return nil }
