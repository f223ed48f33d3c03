// Package graph builds the component/dependency graph from a root
// artifact's extracted facts: BFS resolution of shared-library
// dependencies, dedup by content hash, cycle-breaking, and deterministic
// ordering before the document is frozen for serialization.
package graph

import (
	"context"
	"sync"

	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/heimdall-sbom/heimdall/internal/extract"
	"github.com/heimdall-sbom/heimdall/internal/langadapter"
	"github.com/heimdall-sbom/heimdall/internal/model"
	"github.com/heimdall-sbom/heimdall/internal/workpool"
)

// ErrCancelled mirrors the root sentinel, translated at the Core API
// boundary to avoid an import cycle.
var ErrCancelled = xerrors.New("operation cancelled")

// Options configures one Build call.
type Options struct {
	Spec        model.SpecFamily
	SpecVersion string
	DocumentID  string // UUIDv4 URN, caller-supplied so Build stays deterministic for tests
	Clock       clock.Clock
	Transitive  bool // when false, stop after depth 1 from primary

	Extract     extract.Options
	SearchPaths []string // additional directories tried before the platform defaults
	MaxWorkers  int
}

// Build extracts the root artifact, then BFSes over its
// (and every resolved dependency's) Needed[] names, deduplicating by
// SHA-256 and breaking cycles, producing a frozen, deterministically
// ordered Document.
func Build(ctx context.Context, rootPath string, opts Options) (*model.Document, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	primary, err := extract.Extract(ctx, rootPath, opts.Extract)
	if err != nil {
		return nil, xerrors.Errorf("graph: extract root %s: %w", rootPath, err)
	}

	doc := model.NewDocument(opts.Spec, opts.SpecVersion, opts.DocumentID, clk.Now().UTC())
	assignID(primary)
	doc.PrimaryComponent = primary.ID
	doc.AddComponent(primary)

	resolver := newResolver(opts.SearchPaths)
	b := &builder{
		doc:        doc,
		resolver:   resolver,
		opts:       opts,
		byHash:     map[string]string{}, // sha256 -> component id
		byPath:     map[string]*model.Component{},
		depthOf:    map[string]int{},
	}
	b.byPath[primary.FilePath] = primary
	if h := primary.ComponentSHA256(); h != "" {
		b.byHash[h] = primary.ID
	}
	b.depthOf[primary.ID] = 0

	if err := b.bfs(ctx, primary); err != nil {
		return nil, err
	}

	if opts.Extract.AliDir != "" {
		b.addAdaUnits(opts.Extract.AliDir)
	}

	doc.Freeze()
	return doc, nil
}

// addAdaUnits parses the companion .ali directory and adds one Source
// Component per recovered Ada unit, with an edge from the primary to each
// unit and unit-to-unit edges for the with-relationships whose target
// unit was also recovered.
func (b *builder) addAdaUnits(aliDir string) {
	units, err := langadapter.ParseAliDir(aliDir)
	if err != nil || len(units) == 0 {
		return
	}

	idByUnit := make(map[string]string, len(units))
	for i, c := range langadapter.UnitsToComponents(units) {
		c.ID = model.GenerateComponentID(c.Name, "", "", units[i].SourceFile)
		if _, exists := b.doc.Components[c.ID]; exists {
			idByUnit[units[i].Name] = c.ID
			continue
		}
		b.doc.AddComponent(c)
		idByUnit[units[i].Name] = c.ID
		b.addEdgeWithCycleCheck(b.doc.PrimaryComponent, c.ID)
	}

	for _, u := range units {
		for _, imp := range u.Imports {
			target, ok := idByUnit[imp]
			if !ok {
				continue
			}
			b.addEdgeWithCycleCheck(idByUnit[u.Name], target)
		}
	}
}

type builder struct {
	doc      *model.Document
	resolver *resolver
	opts     Options

	mu      sync.Mutex
	byHash  map[string]string
	byPath  map[string]*model.Component
	depthOf map[string]int
}

// bfs walks the dependency graph breadth-first starting from root,
// resolving each Needed[] name to a filesystem path, extracting it
// (cached by resolved path), deduplicating by SHA-256, and recording
// edges.
func (b *builder) bfs(ctx context.Context, root *model.Component) error {
	frontier := []*model.Component{root}

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return xerrors.Errorf("graph: bfs: %w", ErrCancelled)
		}

		var next []*model.Component
		depth := b.depthOf[frontier[0].ID]

		if !b.opts.Transitive && depth >= 1 {
			break // non-transitive: stop after depth 1 from primary
		}

		jobs := make([]workpool.Job[*depResult], 0)
		for _, comp := range frontier {
			comp := comp
			for _, name := range comp.Needed {
				name := name
				jobs = append(jobs, workpool.Job[*depResult]{
					Key: comp.ID + "->" + name,
					Run: func(ctx context.Context) (*depResult, error) {
						return b.resolveOne(ctx, comp, name)
					},
				})
			}
		}

		pool := workpool.New(b.opts.MaxWorkers)
		results := workpool.Run(ctx, pool, jobs)

		for _, r := range results {
			if r.Err != nil {
				return xerrors.Errorf("graph: %w", r.Err)
			}
			if r.Value == nil {
				continue // unresolved name; already recorded as a property
			}
			dr := r.Value
			if dr.isNew {
				next = append(next, dr.component)
			}
			b.addEdgeWithCycleCheck(dr.from, dr.component.ID)
		}

		frontier = next
	}
	return nil
}

type depResult struct {
	from      string
	component *model.Component
	isNew     bool
}

// resolveOne resolves one (component, needed-name) pair to a Component,
// extracting it if this is the first time the path has been seen, or
// recording the name as unresolved.
func (b *builder) resolveOne(ctx context.Context, from *model.Component, name string) (*depResult, error) {
	resolvedPath, ok := b.resolver.resolve(name, from.FilePath, from.RunPaths)
	if !ok {
		b.mu.Lock()
		from.SetProperty("unresolved.needed", appendCSV(from.Properties["unresolved.needed"], name))
		b.mu.Unlock()
		return nil, nil
	}

	b.mu.Lock()
	if existing, ok := b.byPath[resolvedPath]; ok {
		depth := b.depthOf[from.ID] + 1
		if _, seen := b.depthOf[existing.ID]; !seen || depth < b.depthOf[existing.ID] {
			b.depthOf[existing.ID] = depth
		}
		b.mu.Unlock()
		return &depResult{from: from.ID, component: existing, isNew: false}, nil
	}
	b.mu.Unlock()

	comp, err := extract.Extract(ctx, resolvedPath, b.opts.Extract)
	if err != nil {
		// A dependency that fails to extract is simply not
		// added as a resolved Component; record it the same way an
		// unresolved name is recorded.
		b.mu.Lock()
		from.SetProperty("unresolved.needed", appendCSV(from.Properties["unresolved.needed"], name))
		b.mu.Unlock()
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Dedup by SHA-256 if present, else by id.
	if h := comp.ComponentSHA256(); h != "" {
		if existingID, ok := b.byHash[h]; ok {
			existing := b.doc.Components[existingID]
			b.byPath[resolvedPath] = existing
			return &depResult{from: from.ID, component: existing, isNew: false}, nil
		}
	}

	assignID(comp)
	if existing, ok := b.doc.Components[comp.ID]; ok {
		b.byPath[resolvedPath] = existing
		return &depResult{from: from.ID, component: existing, isNew: false}, nil
	}

	comp.Kind = resolveDependencyKind(comp)
	b.doc.AddComponent(comp)
	b.byPath[resolvedPath] = comp
	if h := comp.ComponentSHA256(); h != "" {
		b.byHash[h] = comp.ID
	}
	b.depthOf[comp.ID] = b.depthOf[from.ID] + 1

	return &depResult{from: from.ID, component: comp, isNew: true}, nil
}

// addEdgeWithCycleCheck adds a from->to edge, unless adding it would close
// a cycle back to an ancestor already on the path from the primary
// component, in which case the edge is dropped and recorded as a property
// (the edge that would close the cycle is the one ignored).
func (b *builder) addEdgeWithCycleCheck(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from == to || b.wouldCloseCycle(from, to) {
		if fromComp, ok := b.doc.Components[from]; ok {
			fromComp.SetProperty("dep.cycle-broken", to)
		}
		return
	}
	for _, e := range b.doc.Edges {
		if e.From == from && e.To == to {
			return // edge already recorded
		}
	}
	b.doc.AddEdge(from, to)
}

// wouldCloseCycle reports whether adding from->to would create a path
// from to back to from, by walking existing edges. Called with b.mu held.
func (b *builder) wouldCloseCycle(from, to string) bool {
	visited := map[string]bool{to: true}
	stack := []string{to}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == from {
			return true
		}
		for _, e := range b.doc.Edges {
			if e.From == cur && !visited[e.To] {
				visited[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// assignID gives c a stable content-addressed id, if it doesn't
// already have one.
func assignID(c *model.Component) {
	if c.ID != "" {
		return
	}
	c.ID = model.GenerateComponentID(c.Name, c.Version, c.Hashes[model.HashSHA256], c.FilePath)
}

func resolveDependencyKind(c *model.Component) model.Kind {
	if c.Kind == model.KindStaticLibrary || c.Kind == model.KindExecutable {
		return c.Kind
	}
	return model.KindSharedLibrary
}

func appendCSV(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "," + next
}
