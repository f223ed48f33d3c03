// Package model holds the version-agnostic in-memory SBOM tree:
// Component, Document, dependency edges, and the properties vocabulary the
// rest of the pipeline writes into. Serializers (internal/spdxser,
// internal/cdxser) read a frozen Document; nothing else mutates one after
// Freeze.
package model

import (
	"sort"
	"time"
)

// HashAlgorithm identifies one of the four supported digest algorithms.
type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "MD5"
	HashSHA1   HashAlgorithm = "SHA-1"
	HashSHA256 HashAlgorithm = "SHA-256"
	HashSHA512 HashAlgorithm = "SHA-512"
)

// Kind is the component's structural classification.
type Kind string

const (
	KindExecutable     Kind = "Executable"
	KindSharedLibrary  Kind = "SharedLibrary"
	KindStaticLibrary  Kind = "StaticLibrary"
	KindObject         Kind = "Object"
	KindSource         Kind = "Source"
	KindSystemLibrary  Kind = "SystemLibrary"
	KindFramework      Kind = "Framework"
)

// SymbolKind classifies a Symbol's binding to its defining object.
type SymbolKind string

const (
	SymbolDefined   SymbolKind = "defined"
	SymbolUndefined SymbolKind = "undefined"
	SymbolWeak      SymbolKind = "weak"
)

// NoAssertion is the SPDX/CycloneDX-neutral placeholder for a field that is
// legitimately unknown. Merge logic never overwrites a
// concrete value with this token.
const NoAssertion = "NOASSERTION"

// Section is one entry of an object file's section table.
type Section struct {
	Name  string
	Size  uint64
	Flags string
}

// Symbol is one entry of an object file's (static or dynamic) symbol table,
// deduplicated by (Name, Kind).
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Binding string
	Size    uint64
}

// Function is a subprogram recovered from DWARF or a language adapter.
type Function struct {
	Name       string
	SourceFile string // may be empty
	Line       int    // 0 when unknown
}

// CompileUnit is one DWARF compile_unit DIE's identity.
type CompileUnit struct {
	Name     string
	Producer string
	Language string
}

// Component is the primary entity of the data model.
type Component struct {
	ID                string
	Name              string
	Version           string
	Supplier          string
	License           string // SPDX short id, or NoAssertion
	DownloadLocation  string
	Homepage          string
	Kind              Kind
	FilePath          string
	FileSize          int64
	Hashes            map[HashAlgorithm]string
	Sections          []Section
	Symbols           []Symbol
	SourceFiles       []string
	Functions         []Function
	CompileUnits      []CompileUnit
	Needed            []string
	RunPaths          []string
	PackagePURL       string
	Properties        map[string]string
}

// NewComponent returns a Component with every collection field initialized,
// so callers can append without a nil check.
func NewComponent() *Component {
	return &Component{
		License:      NoAssertion,
		Hashes:       make(map[HashAlgorithm]string),
		Sections:     nil,
		Symbols:      nil,
		SourceFiles:  nil,
		Functions:    nil,
		CompileUnits: nil,
		Needed:       nil,
		Properties:   make(map[string]string),
	}
}

// SetProperty sets a provenance/metadata property, creating the map if
// needed. Keys should come from the closed provenance vocabulary
// (extract.*, dwarf.partial, source.origin, dep.cycle-broken,
// archive.members, unresolved.needed).
func (c *Component) SetProperty(key, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[key] = value
}

// SortedPropertyKeys returns Properties' keys in ascending order, for
// deterministic serialization.
func (c *Component) SortedPropertyKeys() []string {
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mergeString overwrites dst with src when src is non-empty and dst is
// either empty or the NoAssertion placeholder: a concrete value is never
// overwritten with NOASSERTION, one field at
// a time. Callers apply it in strategy-precedence order.
func mergeString(dst, src string) string {
	if src == "" || src == NoAssertion {
		return dst
	}
	if dst == "" || dst == NoAssertion {
		return src
	}
	return dst
}

// MergeFrom folds facts extracted by a lower-precedence strategy into c,
// following the extraction precedence (package probe > DWARF > object
// decoder > heuristic is encoded by the order callers invoke MergeFrom in,
// highest precedence first, since c keeps any concrete scalar it already
// holds). Scalars use mergeString; collections are
// unioned, since two strategies observing the same binary are expected to
// agree on sections/symbols/etc. and a union is harmless even if they
// don't.
func (c *Component) MergeFrom(other *Component) {
	if other == nil {
		return
	}
	c.Name = mergeString(c.Name, other.Name)
	c.Version = mergeString(c.Version, other.Version)
	c.Supplier = mergeString(c.Supplier, other.Supplier)
	c.License = mergeString(c.License, other.License)
	c.DownloadLocation = mergeString(c.DownloadLocation, other.DownloadLocation)
	c.Homepage = mergeString(c.Homepage, other.Homepage)
	c.PackagePURL = mergeString(c.PackagePURL, other.PackagePURL)

	if c.Kind == "" {
		c.Kind = other.Kind
	}
	for algo, digest := range other.Hashes {
		if _, ok := c.Hashes[algo]; !ok {
			c.Hashes[algo] = digest
		}
	}
	c.Sections = unionSections(c.Sections, other.Sections)
	c.Symbols = unionSymbols(c.Symbols, other.Symbols)
	c.SourceFiles = unionStrings(c.SourceFiles, other.SourceFiles)
	c.Functions = append(c.Functions, other.Functions...)
	c.CompileUnits = append(c.CompileUnits, other.CompileUnits...)
	c.Needed = unionStrings(c.Needed, other.Needed)
	c.RunPaths = unionStrings(c.RunPaths, other.RunPaths)
	for k, v := range other.Properties {
		c.SetProperty(k, v)
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionSections(a, b []Section) []Section {
	seen := make(map[string]bool, len(a))
	out := append([]Section(nil), a...)
	for _, s := range a {
		seen[s.Name] = true
	}
	for _, s := range b {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
}

func unionSymbols(a, b []Symbol) []Symbol {
	type key struct {
		name string
		kind SymbolKind
	}
	seen := make(map[key]bool, len(a))
	out := append([]Symbol(nil), a...)
	for _, s := range a {
		seen[key{s.Name, s.Kind}] = true
	}
	for _, s := range b {
		k := key{s.Name, s.Kind}
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// Edge is a directed dependency edge: From dynamically links To.
type Edge struct {
	From string // Component.ID
	To   string // Component.ID
}

// Creator is one entry of a Document's provenance chain.
type CreatorKind string

const (
	CreatorTool         CreatorKind = "Tool"
	CreatorOrganization CreatorKind = "Organization"
	CreatorPerson       CreatorKind = "Person"
)

type Creator struct {
	Kind    CreatorKind
	Name    string
	Version string
	Email   string
}

// SpecFamily names the target SBOM standard a Document will be serialized
// as, so serializers can specialize without re-walking facts.
type SpecFamily string

const (
	SpecSPDX       SpecFamily = "SPDX"
	SpecCycloneDX  SpecFamily = "CycloneDX"
)

// DocumentState is the document lifecycle gate: Components and edges
// may only be mutated before Freeze.
type DocumentState string

const (
	StateDraft         DocumentState = "draft"
	StateFrozen        DocumentState = "frozen"
	StateEmitted       DocumentState = "emitted"
	StateCanonicalized DocumentState = "canonicalized"
	StateSigned        DocumentState = "signed"
)

// Document is the top-level aggregate: it exclusively owns its
// Components and edges.
type Document struct {
	Spec             SpecFamily
	SpecVersion      string
	DocumentID       string // UUIDv4 URN
	CreatedAt        time.Time
	Creators         []Creator
	PrimaryComponent string // Component.ID, optional
	Components       map[string]*Component
	Edges            []Edge
	Signature        *SignatureInfo

	state DocumentState
}

// NewDocument returns an empty Document in Draft state.
func NewDocument(spec SpecFamily, specVersion, documentID string, createdAt time.Time) *Document {
	return &Document{
		Spec:        spec,
		SpecVersion: specVersion,
		DocumentID:  documentID,
		CreatedAt:   createdAt,
		Components:  make(map[string]*Component),
		state:       StateDraft,
	}
}

// State returns the Document's current lifecycle state.
func (d *Document) State() DocumentState { return d.state }

// AddComponent inserts or replaces a Component keyed by its ID. It is a
// programmer error to call this after Freeze; callers running under the
// graph builder never do.
func (d *Document) AddComponent(c *Component) {
	if d.Components == nil {
		d.Components = make(map[string]*Component)
	}
	d.Components[c.ID] = c
}

// AddEdge records a dependency edge. Both ends must already exist as
// Components; the graph builder is responsible for that invariant.
func (d *Document) AddEdge(from, to string) {
	d.Edges = append(d.Edges, Edge{From: from, To: to})
}

// Freeze transitions the Document out of Draft, after which the graph
// builder must not mutate Components or Edges.
func (d *Document) Freeze() {
	if d.state == StateDraft {
		d.state = StateFrozen
	}
}

// MarkEmitted, MarkCanonicalized, and MarkSigned advance the lifecycle state
// machine as the serializer, canonicalizer, and signer each finish their
// stage.
func (d *Document) MarkEmitted()       { d.state = StateEmitted }
func (d *Document) MarkCanonicalized() { d.state = StateCanonicalized }
func (d *Document) MarkSigned()        { d.state = StateSigned }

// SortedComponents returns Components in emit order: primary first, then
// the rest sorted by ID.
func (d *Document) SortedComponents() []*Component {
	out := make([]*Component, 0, len(d.Components))
	var primary *Component
	for id, c := range d.Components {
		if id == d.PrimaryComponent {
			primary = c
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if primary != nil {
		out = append([]*Component{primary}, out...)
	}
	return out
}

// SortedEdges returns Edges ordered by (From, To).
func (d *Document) SortedEdges() []Edge {
	out := append([]Edge(nil), d.Edges...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// SignatureInfo carries a JWS/JSF signature over a canonicalized
// document.
type SignatureInfo struct {
	Algorithm       string
	KeyID           string
	Value           string // base64url
	PublicKey       *JWK
	CertificateChain []byte // concatenated PEM
}

// JWK is the minimal set of JSON Web Key fields the signer embeds.
type JWK struct {
	Kty string
	Crv string
	X   string
	Y   string
	N   string
	E   string
}
