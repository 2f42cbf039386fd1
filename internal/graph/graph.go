// Package graph builds the dependency graph of installed packages and
// answers closure queries over it.
//
// Nodes are installed packages identified by brew.ID and stored by integer
// index; an edge A -> B means A directly depends on B. Declared dependencies
// whose target is not installed never become nodes. They are kept per
// source node as externals. The graph is immutable once built, so queries
// may run concurrently.
package graph

import (
	"github.com/blackwell-systems/brewdeps/internal/brew"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// Edge is a direct dependency between two installed packages.
type Edge struct {
	From brew.ID
	To   brew.ID
	Type brew.DepType
}

// External is a declared dependency on a package that is not installed.
type External struct {
	From       brew.ID
	Dependency brew.Dependency
}

// Graph is the dependency graph of one registry snapshot.
type Graph struct {
	ids      []brew.ID
	index    map[brew.ID]int
	records  []brew.Record
	out      [][]int
	outTypes [][]brew.DepType
	in       [][]int
	external [][]brew.Dependency
	edges    int
}

type buildOptions struct {
	skipBuild bool
}

// Option configures Build.
type Option func(*buildOptions)

// WithoutBuildDependencies drops build-only dependency edges.
func WithoutBuildDependencies() Option {
	return func(o *buildOptions) { o.skipBuild = true }
}

// Build constructs the graph from records. A repeated identity keeps its
// first record. Self-dependencies are dropped, and a dependency declared
// twice keeps its first declaration.
func Build(records []brew.Record, opts ...Option) *Graph {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &Graph{index: make(map[brew.ID]int, len(records))}
	for _, r := range records {
		id := r.ID()
		if _, dup := g.index[id]; dup {
			continue
		}
		g.index[id] = len(g.ids)
		g.ids = append(g.ids, id)
		g.records = append(g.records, r)
	}

	n := len(g.ids)
	g.out = make([][]int, n)
	g.outTypes = make([][]brew.DepType, n)
	g.in = make([][]int, n)
	g.external = make([][]brew.Dependency, n)

	for from, r := range g.records {
		seen := make(map[brew.ID]bool)
		for _, dep := range r.Deps() {
			if o.skipBuild && dep.Type == brew.DepBuild {
				continue
			}
			target := dep.ID()
			if target == g.ids[from] || seen[target] {
				continue
			}
			seen[target] = true

			to, ok := g.index[target]
			if !ok {
				g.external[from] = append(g.external[from], dep)
				continue
			}
			g.out[from] = append(g.out[from], to)
			g.outTypes[from] = append(g.outTypes[from], dep.Type)
			g.in[to] = append(g.in[to], from)
			g.edges++
		}
	}

	return g
}

func (g *Graph) node(id brew.ID) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return 0, errs.New(errs.ErrCodePackageNotFound, "%s %q is not installed", id.Kind, id.Name)
	}
	return i, nil
}

func (g *Graph) idsOf(indices []int) []brew.ID {
	out := make([]brew.ID, len(indices))
	for i, idx := range indices {
		out[i] = g.ids[idx]
	}
	return out
}

// Len returns the number of installed packages in the graph.
func (g *Graph) Len() int { return len(g.ids) }

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Has reports whether id is installed.
func (g *Graph) Has(id brew.ID) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns every package in insertion order.
func (g *Graph) Nodes() []brew.ID {
	return append([]brew.ID(nil), g.ids...)
}

// Record returns the package record for id.
func (g *Graph) Record(id brew.ID) (brew.Record, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return g.records[i], nil
}

// Lookup returns the installed packages named name, the cask first.
func (g *Graph) Lookup(name string) []brew.ID {
	var found []brew.ID
	for _, kind := range []brew.Kind{brew.KindCask, brew.KindFormula} {
		id := brew.ID{Name: name, Kind: kind}
		if g.Has(id) {
			found = append(found, id)
		}
	}
	return found
}

// Edges returns every edge, grouped by source in node order and then in
// declaration order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for from, targets := range g.out {
		for k, to := range targets {
			edges = append(edges, Edge{From: g.ids[from], To: g.ids[to], Type: g.outTypes[from][k]})
		}
	}
	return edges
}

// DirectDependencies returns the installed packages id declares directly.
func (g *Graph) DirectDependencies(id brew.ID) ([]brew.ID, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return g.idsOf(g.out[i]), nil
}

// TransitiveDependencies returns every package reachable from id by one or
// more edges, in breadth-first discovery order. id itself is excluded even
// when it sits on a cycle.
func (g *Graph) TransitiveDependencies(id brew.ID) ([]brew.ID, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return g.idsOf(g.reach(i, g.out)), nil
}

// ReverseDependencies returns the packages that declare id directly.
func (g *Graph) ReverseDependencies(id brew.ID) ([]brew.ID, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return g.idsOf(g.in[i]), nil
}

// TransitiveDependents returns every package from which id is reachable.
func (g *Graph) TransitiveDependents(id brew.ID) ([]brew.ID, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return g.idsOf(g.reach(i, g.in)), nil
}

// reach runs a breadth-first search from start over adj.
func (g *Graph) reach(start int, adj [][]int) []int {
	visited := make([]bool, len(g.ids))
	visited[start] = true
	queue := []int{start}
	var found []int

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			found = append(found, next)
			queue = append(queue, next)
		}
	}
	return found
}

// IsTopLevel reports whether no installed package depends on id.
func (g *Graph) IsTopLevel(id brew.ID) (bool, error) {
	i, err := g.node(id)
	if err != nil {
		return false, err
	}
	return len(g.in[i]) == 0, nil
}

// Roots returns every top-level package in node order.
func (g *Graph) Roots() []brew.ID {
	var roots []brew.ID
	for i, parents := range g.in {
		if len(parents) == 0 {
			roots = append(roots, g.ids[i])
		}
	}
	return roots
}

// ExternalDependencies returns the dependencies id declares on packages that
// are not installed.
func (g *Graph) ExternalDependencies(id brew.ID) ([]brew.Dependency, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return append([]brew.Dependency(nil), g.external[i]...), nil
}

// Externals returns every dangling dependency declaration in node order.
func (g *Graph) Externals() []External {
	var all []External
	for i, deps := range g.external {
		for _, dep := range deps {
			all = append(all, External{From: g.ids[i], Dependency: dep})
		}
	}
	return all
}

// Subgraph returns the graph induced by id and its transitive dependencies.
func (g *Graph) Subgraph(id brew.ID) (*Graph, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}

	keep := append([]int{i}, g.reach(i, g.out)...)
	member := make(map[int]int, len(keep))

	sub := &Graph{index: make(map[brew.ID]int, len(keep))}
	for _, old := range keep {
		member[old] = len(sub.ids)
		sub.index[g.ids[old]] = len(sub.ids)
		sub.ids = append(sub.ids, g.ids[old])
		sub.records = append(sub.records, g.records[old])
	}

	n := len(sub.ids)
	sub.out = make([][]int, n)
	sub.outTypes = make([][]brew.DepType, n)
	sub.in = make([][]int, n)
	sub.external = make([][]brew.Dependency, n)

	for newFrom, old := range keep {
		for k, oldTo := range g.out[old] {
			newTo, ok := member[oldTo]
			if !ok {
				continue
			}
			sub.out[newFrom] = append(sub.out[newFrom], newTo)
			sub.outTypes[newFrom] = append(sub.outTypes[newFrom], g.outTypes[old][k])
			sub.in[newTo] = append(sub.in[newTo], newFrom)
			sub.edges++
		}
		sub.external[newFrom] = append([]brew.Dependency(nil), g.external[old]...)
	}

	return sub, nil
}
