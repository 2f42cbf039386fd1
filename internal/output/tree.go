package output

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

const (
	branchMid  = "├── "
	branchLast = "└── "
	pipeIndent = "│   "
	blankInset = "    "

	markCycle     = "(cycle)"
	markTruncated = "…"
	markRepeated  = "(see above)"
)

// RenderTree renders a dependency tree with box-drawing connectors. Nodes
// that were not expanded carry a marker after the name.
//
//	htop
//	├── ncurses
//	└── libtool
//	    └── m4
func (p *Printer) RenderTree(t *graph.Tree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.paint(styleRoot, p.treeLabel(t)))
	p.writeChildren(&b, t, "")
	return b.String()
}

// RenderForest renders several trees separated by blank lines.
func (p *Printer) RenderForest(forest []*graph.Tree) string {
	parts := make([]string, len(forest))
	for i, t := range forest {
		parts[i] = p.RenderTree(t)
	}
	return strings.Join(parts, "\n")
}

func (p *Printer) writeChildren(b *strings.Builder, t *graph.Tree, prefix string) {
	for i, child := range t.Children {
		last := i == len(t.Children)-1
		connector, inset := branchMid, pipeIndent
		if last {
			connector, inset = branchLast, blankInset
		}
		fmt.Fprintf(b, "%s%s%s\n", p.paint(styleDim, prefix+connector), p.treeLabel(child), p.treeSuffix(child))
		p.writeChildren(b, child, prefix+inset)
	}
}

func (p *Printer) treeLabel(t *graph.Tree) string {
	if t.ID.Kind == brew.KindCask {
		return p.paint(styleCask, t.ID.String())
	}
	return p.paint(styleFormula, t.ID.Name)
}

func (p *Printer) treeSuffix(t *graph.Tree) string {
	var marks []string
	if t.Type != brew.DepRuntime {
		marks = append(marks, "["+t.Type.String()+"]")
	}
	if t.Cycle {
		marks = append(marks, markCycle)
	}
	if t.Truncated {
		marks = append(marks, markTruncated)
	}
	if t.Repeated {
		marks = append(marks, markRepeated)
	}
	if len(marks) == 0 {
		return ""
	}
	return " " + p.paint(styleDim, strings.Join(marks, " "))
}
