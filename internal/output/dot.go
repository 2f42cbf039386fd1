package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

// DOTOptions controls DOT export.
type DOTOptions struct {
	// Name is the digraph name. Defaults to "brew_dependencies".
	Name string
	// Highlight marks one package, usually the queried root.
	Highlight *brew.ID
}

// ToDOT exports g as a Graphviz digraph. Formulae are boxes and casks are
// magenta component shapes. Packages installed on request are bold. Build
// edges are dashed and optional or recommended edges dotted. Dependencies
// that are not installed are left out.
func ToDOT(g *graph.Graph, opts DOTOptions) string {
	name := opts.Name
	if name == "" {
		name = "brew_dependencies"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [color=\"#666666\"];\n")

	for _, id := range g.Nodes() {
		fmt.Fprintf(&b, "  %q [%s];\n", dotID(id), strings.Join(nodeAttrs(g, id, opts.Highlight), ", "))
	}

	for _, e := range g.Edges() {
		attrs := edgeAttrs(e)
		if len(attrs) == 0 {
			fmt.Fprintf(&b, "  %q -> %q;\n", dotID(e.From), dotID(e.To))
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [%s];\n", dotID(e.From), dotID(e.To), strings.Join(attrs, ", "))
	}

	b.WriteString("}\n")
	return b.String()
}

// dotID keeps formula and cask node ids apart when they share a name.
func dotID(id brew.ID) string {
	if id.Kind == brew.KindCask {
		return "cask:" + id.Name
	}
	return id.Name
}

func nodeAttrs(g *graph.Graph, id brew.ID, highlight *brew.ID) []string {
	attrs := []string{fmt.Sprintf("label=%q", id.Name)}

	style := "rounded"
	if rec, err := g.Record(id); err == nil && rec.OnRequest() {
		style = "rounded,bold"
	}
	if highlight != nil && *highlight == id {
		style += ",filled"
		attrs = append(attrs, `fillcolor="#e0f0ff"`)
	}

	if id.Kind == brew.KindCask {
		attrs = append(attrs, "shape=component", `color="#aa3399"`, `fontcolor="#aa3399"`)
	}
	if style != "rounded" {
		attrs = append(attrs, fmt.Sprintf("style=%q", style))
	}
	return attrs
}

func edgeAttrs(e graph.Edge) []string {
	switch e.Type {
	case brew.DepBuild:
		return []string{"style=dashed"}
	case brew.DepOptional, brew.DepRecommended:
		return []string{"style=dotted"}
	}
	return nil
}

// WriteDOT writes dot to path, creating parent directories.
func WriteDOT(path, dot string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("failed to write DOT file: %w", err)
	}
	return nil
}

// DefaultDOTPath returns the DOT file name used when none is given.
func DefaultDOTPath(pkg string) string {
	if pkg == "" {
		return "all_brew_dependencies.dot"
	}
	return strings.ReplaceAll(pkg, "/", "_") + "_dependencies.dot"
}
