package graph

import "github.com/blackwell-systems/brewdeps/internal/brew"

// Tree is a depth-bounded expansion of a package's dependencies.
type Tree struct {
	ID   brew.ID
	Type brew.DepType // how the parent declared this node; DepRuntime at the root

	Children []*Tree

	// Cycle marks a node already on the path from the root. It is not
	// expanded again.
	Cycle bool

	// Truncated marks a node that has dependencies which were not expanded
	// because the depth limit was reached.
	Truncated bool

	// Repeated marks a node whose dependencies were already expanded
	// earlier in the same tree with at least as much depth left.
	Repeated bool
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

// DependencyTree expands id's dependencies down to maxDepth edges from the
// root. A maxDepth of 0 yields the root alone and a negative maxDepth is
// unlimited. A repeat along the current path is cut as a Cycle leaf. A
// package already expanded earlier in the tree becomes a Repeated leaf,
// unless that expansion was cut by the depth limit and more depth is left
// now. Shared dependencies therefore cannot blow the tree up.
func (g *Graph) DependencyTree(id brew.ID, maxDepth int) (*Tree, error) {
	i, err := g.node(id)
	if err != nil {
		return nil, err
	}
	b := &treeBuilder{
		g:        g,
		maxDepth: maxDepth,
		onPath:   make([]bool, len(g.ids)),
		expanded: make(map[int]expansion),
	}
	tree, _ := b.expand(i, brew.DepRuntime, 0)
	return tree, nil
}

type treeBuilder struct {
	g        *Graph
	maxDepth int
	onPath   []bool
	expanded map[int]expansion
}

type expansion struct {
	left     int  // depth left when expanded, -1 if unlimited
	complete bool // nothing below was cut by the depth limit
}

// expand returns the subtree rooted at i and whether it is complete.
func (b *treeBuilder) expand(i int, typ brew.DepType, depth int) (*Tree, bool) {
	g := b.g
	t := &Tree{ID: g.ids[i], Type: typ}
	if len(g.out[i]) == 0 {
		return t, true
	}

	left := -1
	if b.maxDepth >= 0 {
		left = b.maxDepth - depth
		if left <= 0 {
			t.Truncated = true
			return t, false
		}
	}
	if prev, ok := b.expanded[i]; ok && (prev.complete || prev.left >= left) {
		t.Repeated = true
		return t, prev.complete
	}

	complete := true
	b.onPath[i] = true
	for k, child := range g.out[i] {
		if b.onPath[child] {
			t.Children = append(t.Children, &Tree{ID: g.ids[child], Type: g.outTypes[i][k], Cycle: true})
			continue
		}
		sub, ok := b.expand(child, g.outTypes[i][k], depth+1)
		t.Children = append(t.Children, sub)
		complete = complete && ok
	}
	b.onPath[i] = false
	b.expanded[i] = expansion{left: left, complete: complete}

	return t, complete
}
