// Package analyzer assembles query results from the dependency graph. It
// performs all graph computation for a command, so renderers only format
// what it returns.
package analyzer

import (
	"sort"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

// Analyzer answers package and registry queries over one graph.
type Analyzer struct {
	graph *graph.Graph
}

// New creates a new Analyzer instance with the given graph.
func New(g *graph.Graph) *Analyzer {
	return &Analyzer{graph: g}
}

// Resolve maps a query to an installed package. An explicit kind is
// authoritative. Otherwise a cask wins over a formula of the same name, as
// a name matching an installed cask token names the cask.
func (a *Analyzer) Resolve(q Query) (brew.ID, error) {
	if q.Name == "" {
		return brew.ID{}, errs.New(errs.ErrCodeInvalidInput, "package name is empty")
	}

	if q.KindExplicit {
		id := brew.ID{Name: q.Name, Kind: q.Kind}
		if !a.graph.Has(id) {
			return brew.ID{}, errs.New(errs.ErrCodePackageNotFound, "%s %q is not installed", q.Kind, q.Name)
		}
		return id, nil
	}

	found := a.graph.Lookup(q.Name)
	if len(found) == 0 {
		return brew.ID{}, errs.New(errs.ErrCodePackageNotFound, "no installed formula or cask named %q", q.Name)
	}
	return found[0], nil
}

// Package builds the full report for one package.
func (a *Analyzer) Package(q Query) (*Report, error) {
	id, err := a.Resolve(q)
	if err != nil {
		return nil, err
	}

	record, err := a.graph.Record(id)
	if err != nil {
		return nil, err
	}
	direct, err := a.graph.DirectDependencies(id)
	if err != nil {
		return nil, err
	}
	transitive, err := a.graph.TransitiveDependencies(id)
	if err != nil {
		return nil, err
	}
	dependents, err := a.graph.ReverseDependencies(id)
	if err != nil {
		return nil, err
	}
	external, err := a.graph.ExternalDependencies(id)
	if err != nil {
		return nil, err
	}

	isDirect := make(map[brew.ID]bool, len(direct))
	for _, d := range direct {
		isDirect[d] = true
	}
	var indirect []brew.ID
	for _, t := range transitive {
		if !isDirect[t] {
			indirect = append(indirect, t)
		}
	}

	return &Report{
		ID:                 id,
		Record:             record,
		Direct:             direct,
		Transitive:         transitive,
		IndirectOnly:       indirect,
		Dependents:         dependents,
		TopLevel:           len(dependents) == 0,
		InstalledOnRequest: record.OnRequest(),
		External:           external,
	}, nil
}

// Overview summarises the registry. Name lists are sorted.
func (a *Analyzer) Overview() *Overview {
	ov := &Overview{
		Edges:     a.graph.EdgeCount(),
		Externals: a.graph.Externals(),
	}

	topLevel := make(map[brew.ID]bool)
	for _, id := range a.graph.Roots() {
		topLevel[id] = true
	}

	for _, id := range a.graph.Nodes() {
		record, err := a.graph.Record(id)
		if err != nil {
			continue
		}
		switch r := record.(type) {
		case *brew.Formula:
			ov.Formulae++
			if topLevel[id] {
				ov.TopLevelFormulae = append(ov.TopLevelFormulae, id)
			}
			if r.InstalledOnRequest {
				ov.RequestedFormulae = append(ov.RequestedFormulae, id)
			}
		case *brew.Cask:
			ov.Casks++
			if topLevel[id] {
				ov.TopLevelCasks = append(ov.TopLevelCasks, id)
			}
			version := r.InstalledVersion
			if version == "" {
				version = r.Version
			}
			ov.AllCasks = append(ov.AllCasks, CaskSummary{ID: id, Version: version, DependsOn: r.Deps()})
		}
	}

	sortIDs(ov.TopLevelFormulae)
	sortIDs(ov.RequestedFormulae)
	sortIDs(ov.TopLevelCasks)
	sort.Slice(ov.AllCasks, func(i, j int) bool { return ov.AllCasks[i].ID.Name < ov.AllCasks[j].ID.Name })
	ov.Orphans = a.Orphans()

	return ov
}

// Tree expands one package's dependencies to depth edges.
func (a *Analyzer) Tree(q Query, depth int) (*graph.Tree, error) {
	id, err := a.Resolve(q)
	if err != nil {
		return nil, err
	}
	return a.graph.DependencyTree(id, depth)
}

// Forest returns one tree per top-level package, sorted by name. Packages
// reachable from no root (a cycle nothing else depends on) get a tree of
// their own so every package appears.
func (a *Analyzer) Forest(depth int) ([]*graph.Tree, error) {
	roots := a.graph.Roots()
	sortIDs(roots)

	covered := make(map[brew.ID]bool)
	var starts []brew.ID
	mark := func(id brew.ID) error {
		starts = append(starts, id)
		covered[id] = true
		reach, err := a.graph.TransitiveDependencies(id)
		if err != nil {
			return err
		}
		for _, r := range reach {
			covered[r] = true
		}
		return nil
	}

	for _, id := range roots {
		if err := mark(id); err != nil {
			return nil, err
		}
	}
	for _, id := range a.graph.Nodes() {
		if covered[id] {
			continue
		}
		if err := mark(id); err != nil {
			return nil, err
		}
	}

	forest := make([]*graph.Tree, 0, len(starts))
	for _, id := range starts {
		tree, err := a.graph.DependencyTree(id, depth)
		if err != nil {
			return nil, err
		}
		forest = append(forest, tree)
	}
	return forest, nil
}

// Export returns the graph to draw: the package and its dependencies when q
// is non-nil, otherwise the whole registry.
func (a *Analyzer) Export(q *Query) (*graph.Graph, error) {
	if q == nil {
		return a.graph, nil
	}
	id, err := a.Resolve(*q)
	if err != nil {
		return nil, err
	}
	return a.graph.Subgraph(id)
}

func sortIDs(ids []brew.ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Kind < ids[j].Kind
	})
}
