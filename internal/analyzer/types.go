package analyzer

import (
	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

// Query names the package a command asks about.
type Query struct {
	Name string
	Kind brew.Kind
	// KindExplicit is set when the user chose the kind (--cask or
	// --formula). Lookup then never falls back to the other kind.
	KindExplicit bool
}

// Report is everything known about one installed package.
type Report struct {
	ID     brew.ID
	Record brew.Record

	Direct     []brew.ID // declared, installed dependencies
	Transitive []brew.ID // full closure, direct dependencies included
	// IndirectOnly holds closure members that are not declared directly.
	IndirectOnly []brew.ID
	Dependents   []brew.ID // packages that declare this one directly

	TopLevel           bool
	InstalledOnRequest bool

	External []brew.Dependency // declared dependencies that are not installed
}

// CaskSummary describes one installed cask in the registry overview.
type CaskSummary struct {
	ID        brew.ID
	Version   string
	DependsOn []brew.Dependency
}

// Overview summarises the whole registry.
type Overview struct {
	Formulae int
	Casks    int
	Edges    int

	TopLevelFormulae  []brew.ID
	RequestedFormulae []brew.ID
	TopLevelCasks     []brew.ID
	AllCasks          []CaskSummary

	// Orphans are formulae installed as dependencies that nothing needs.
	Orphans []brew.ID

	Externals []graph.External
}
