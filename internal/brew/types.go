package brew

import (
	"fmt"
	"time"
)

// Kind distinguishes the two kinds of installed Homebrew package.
type Kind int

const (
	KindFormula Kind = iota
	KindCask
)

// String returns "formula" or "cask".
func (k Kind) String() string {
	if k == KindCask {
		return "cask"
	}
	return "formula"
}

// ParseKind parses "formula" or "cask".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "formula":
		return KindFormula, nil
	case "cask":
		return KindCask, nil
	}
	return KindFormula, fmt.Errorf("unknown package kind %q", s)
}

// ID identifies an installed package. Names are unique within a kind only:
// a formula and a cask may share a name.
type ID struct {
	Name string
	Kind Kind
}

// String returns the bare name for formulae and "name (cask)" for casks.
func (id ID) String() string {
	if id.Kind == KindCask {
		return id.Name + " (cask)"
	}
	return id.Name
}

// DepType records how a dependency was declared.
type DepType int

const (
	DepRuntime DepType = iota
	DepBuild
	DepOptional
	DepRecommended
)

// String returns the lowercase declaration name.
func (t DepType) String() string {
	switch t {
	case DepBuild:
		return "build"
	case DepOptional:
		return "optional"
	case DepRecommended:
		return "recommended"
	default:
		return "runtime"
	}
}

// ParseDepType is the inverse of DepType.String.
func ParseDepType(s string) (DepType, error) {
	for _, t := range []DepType{DepRuntime, DepBuild, DepOptional, DepRecommended} {
		if t.String() == s {
			return t, nil
		}
	}
	return DepRuntime, fmt.Errorf("unknown dependency type %q", s)
}

// Dependency is one declared direct dependency of a package.
type Dependency struct {
	Name string
	Kind Kind
	Type DepType
}

// ID returns the identity the dependency refers to.
func (d Dependency) ID() ID {
	return ID{Name: d.Name, Kind: d.Kind}
}

// Record is an installed package as seen by the dependency graph.
// It is implemented by *Formula and *Cask; use a type switch to reach
// kind-specific metadata.
type Record interface {
	ID() ID
	Deps() []Dependency
	OnRequest() bool
}

// Formula is an installed Homebrew formula. The JSON layout is the one
// written to the cache file.
type Formula struct {
	Name                    string   `json:"name"`
	FullName                string   `json:"full_name,omitempty"`
	Tap                     string   `json:"tap,omitempty"`
	Version                 string   `json:"version,omitempty"`
	Desc                    string   `json:"desc,omitempty"`
	Homepage                string   `json:"homepage,omitempty"`
	Dependencies            []string `json:"dependencies"`
	BuildDependencies       []string `json:"build_dependencies"`
	OptionalDependencies    []string `json:"optional_dependencies"`
	RecommendedDependencies []string `json:"recommended_dependencies"`
	InstalledOnRequest      bool     `json:"installed_on_request"`
	InstalledAsDependency   bool     `json:"installed_as_dependency,omitempty"`
	InstalledVersions       []string `json:"installed_versions,omitempty"`
	InstalledTime           int64    `json:"installed_time,omitempty"`
	LinkedKeg               string   `json:"linked_keg,omitempty"`
	Outdated                bool     `json:"outdated,omitempty"`
	Pinned                  bool     `json:"pinned,omitempty"`
}

// ID implements Record.
func (f *Formula) ID() ID { return ID{Name: f.Name, Kind: KindFormula} }

// OnRequest implements Record.
func (f *Formula) OnRequest() bool { return f.InstalledOnRequest }

// Deps implements Record. Runtime dependencies come first, then build,
// optional and recommended ones, each in declaration order.
func (f *Formula) Deps() []Dependency {
	n := len(f.Dependencies) + len(f.BuildDependencies) + len(f.OptionalDependencies) + len(f.RecommendedDependencies)
	deps := make([]Dependency, 0, n)
	for _, group := range []struct {
		names []string
		typ   DepType
	}{
		{f.Dependencies, DepRuntime},
		{f.BuildDependencies, DepBuild},
		{f.OptionalDependencies, DepOptional},
		{f.RecommendedDependencies, DepRecommended},
	} {
		for _, name := range group.names {
			deps = append(deps, Dependency{Name: name, Kind: KindFormula, Type: group.typ})
		}
	}
	return deps
}

// InstalledAt returns the install time, or the zero time if unknown.
func (f *Formula) InstalledAt() time.Time {
	if f.InstalledTime <= 0 {
		return time.Time{}
	}
	return time.Unix(f.InstalledTime, 0)
}

// Cask is an installed Homebrew cask. Name holds the cask token, which is
// what other packages refer to; DisplayName is the human-facing name.
type Cask struct {
	Name             string   `json:"name"`
	FullName         string   `json:"full_name,omitempty"`
	DisplayName      string   `json:"display_name,omitempty"`
	Tap              string   `json:"tap,omitempty"`
	Version          string   `json:"version,omitempty"`
	InstalledVersion string   `json:"installed_version,omitempty"`
	Desc             string   `json:"desc,omitempty"`
	Homepage         string   `json:"homepage,omitempty"`
	Dependencies     []string `json:"dependencies"`
	CaskDependencies []string `json:"cask_dependencies"`
	Apps             []string `json:"apps,omitempty"`
	AutoUpdates      bool     `json:"auto_updates,omitempty"`
	Outdated         bool     `json:"outdated,omitempty"`
	InstalledTime    int64    `json:"installed_time,omitempty"`
}

// ID implements Record.
func (c *Cask) ID() ID { return ID{Name: c.Name, Kind: KindCask} }

// OnRequest implements Record. Homebrew does not report an install reason
// for casks, so this is always false.
func (c *Cask) OnRequest() bool { return false }

// Deps implements Record: depends_on.formula entries followed by
// depends_on.cask entries.
func (c *Cask) Deps() []Dependency {
	deps := make([]Dependency, 0, len(c.Dependencies)+len(c.CaskDependencies))
	for _, name := range c.Dependencies {
		deps = append(deps, Dependency{Name: name, Kind: KindFormula})
	}
	for _, name := range c.CaskDependencies {
		deps = append(deps, Dependency{Name: name, Kind: KindCask})
	}
	return deps
}

// InstalledAt returns the install time, or the zero time if unknown.
func (c *Cask) InstalledAt() time.Time {
	if c.InstalledTime <= 0 {
		return time.Time{}
	}
	return time.Unix(c.InstalledTime, 0)
}

// Snapshot is the full set of installed packages from a single fetch.
type Snapshot struct {
	Formulae []Formula `json:"formulae"`
	Casks    []Cask    `json:"casks"`
}

// Len returns the number of packages in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Formulae) + len(s.Casks)
}

// Records returns every package as a Record, formulae first.
func (s *Snapshot) Records() []Record {
	records := make([]Record, 0, s.Len())
	for i := range s.Formulae {
		records = append(records, &s.Formulae[i])
	}
	for i := range s.Casks {
		records = append(records, &s.Casks[i])
	}
	return records
}
