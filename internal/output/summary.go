package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/brewdeps/internal/analyzer"
	"github.com/blackwell-systems/brewdeps/internal/brew"
)

// RenderReport renders the summary for one package.
func (p *Printer) RenderReport(r *analyzer.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", p.paint(styleHeading, fmt.Sprintf("Analyzing '%s' (%s):", r.ID.Name, r.ID.Kind)))

	switch rec := r.Record.(type) {
	case *brew.Cask:
		p.caskDetails(&b, rec)
		if len(r.Direct) > 0 {
			p.field(&b, "Depends on", p.names(r.Direct))
		}
		if len(r.Transitive) > 0 {
			p.field(&b, "Also depends on (transitive)", p.names(r.Transitive))
		}
		if len(r.Dependents) > 0 {
			p.field(&b, "Required by", p.names(r.Dependents))
		}
	case *brew.Formula:
		p.formulaDetails(&b, rec)
		switch {
		case len(r.Dependents) > 0:
			p.field(&b, "Installed because of", p.names(r.Dependents))
			fmt.Fprintf(&b, "    %s\n", p.paint(styleDim, fmt.Sprintf("(These packages depend on '%s' to function)", r.ID.Name)))
		case r.InstalledOnRequest:
			fmt.Fprintf(&b, "  %s\n", p.paint(styleLabel, "Installed directly by user (flagged 'installed_on_request')."))
		default:
			fmt.Fprintf(&b, "  %s\n", p.paint(styleLabel, "Installed directly by user (it's a top-level package with no installed dependents)."))
		}
		p.field(&b, "Directly depends on", p.namesOrNone(r.Direct))
		p.field(&b, "Also depends on (transitive)", p.namesOrNone(r.Transitive))
	}

	if len(r.External) > 0 {
		names := make([]string, len(r.External))
		for i, d := range r.External {
			names[i] = d.ID().String()
		}
		p.field(&b, "Not installed", strings.Join(names, ", "))
	}

	return b.String()
}

func (p *Printer) formulaDetails(b *strings.Builder, f *brew.Formula) {
	if f.Desc != "" {
		p.field(b, "Description", f.Desc)
	}
	if f.Version != "" {
		version := f.Version
		if len(f.InstalledVersions) > 0 && f.InstalledVersions[len(f.InstalledVersions)-1] != f.Version {
			version = fmt.Sprintf("%s %s %s available", f.InstalledVersions[len(f.InstalledVersions)-1], iconArrow, f.Version)
		}
		var flags []string
		if f.Outdated {
			flags = append(flags, p.paint(styleErr, "(outdated)"))
		}
		if f.Pinned {
			flags = append(flags, p.paint(styleNote, "(pinned)"))
		}
		if len(flags) > 0 {
			version += " " + strings.Join(flags, " ")
		}
		p.field(b, "Version", version)
	}
}

func (p *Printer) caskDetails(b *strings.Builder, c *brew.Cask) {
	name := c.DisplayName
	if name == "" {
		name = c.Name
	}
	p.field(b, "Name", name)

	if c.Desc != "" {
		p.field(b, "Description", c.Desc)
	}

	if c.InstalledVersion != "" {
		status := p.paint(styleOK, "(up to date)")
		if c.Outdated {
			status = p.paint(styleErr, "(outdated)")
		}
		if c.Version == "" || c.InstalledVersion == c.Version {
			p.field(b, "Version", c.InstalledVersion+" "+status)
		} else {
			p.field(b, "Version", fmt.Sprintf("%s %s %s available %s", c.InstalledVersion, iconArrow, c.Version, status))
		}
	}

	if len(c.Apps) > 0 {
		p.field(b, "App", strings.Join(c.Apps, ", "))
	}
	if c.AutoUpdates {
		p.field(b, "Auto-updates", "Yes")
	}
	if c.Homepage != "" {
		p.field(b, "Homepage", c.Homepage)
	}
	if at := c.InstalledAt(); !at.IsZero() {
		p.field(b, "Installed", at.Format(time.DateOnly))
	}
}

// RenderOverview renders the whole-registry summary.
func (p *Printer) RenderOverview(ov *analyzer.Overview) string {
	var b strings.Builder

	if ov.Formulae > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.paint(styleSection, "Formulae you might have explicitly installed:"))
		if len(ov.TopLevelFormulae) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", p.paint(styleNote, "Top-level packages (no other installed packages depend on these):"), bareNames(ov.TopLevelFormulae))
			fmt.Fprintf(&b, "  %s\n", p.paint(styleDim, "These are strong candidates for packages you installed directly, not as dependencies."))
		} else {
			fmt.Fprintf(&b, "  %s\n", p.paint(styleNote, "None found (all formulae seem to be dependencies of other installed packages)."))
		}

		if len(ov.RequestedFormulae) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", p.paint(styleNote, "'installed_on_request' flagged packages:"), bareNames(ov.RequestedFormulae))
			fmt.Fprintf(&b, "  %s\n", p.paint(styleDim, "This flag indicates they were installed via 'brew install' explicitly."))
		} else {
			fmt.Fprintf(&b, "  %s\n", p.paint(styleNote, "No formulae found with 'installed_on_request' flag."))
		}

		if len(ov.Orphans) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", p.paint(styleWarn, "Installed as dependencies but no longer needed:"), bareNames(ov.Orphans))
			fmt.Fprintf(&b, "  %s\n", p.paint(styleDim, "'brew autoremove' would uninstall these."))
		}
	}

	if ov.Casks > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.paint(styleHeading, "Casks:"))
		if len(ov.TopLevelCasks) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", p.paint(styleNote, "Top-level casks (no other installed packages depend on these):"), bareNames(ov.TopLevelCasks))
			fmt.Fprintf(&b, "  %s\n", p.paint(styleDim, "These are strong candidates for casks you installed directly."))
		} else {
			fmt.Fprintf(&b, "  %s\n", p.paint(styleNote, "None found (all casks seem to be dependencies of other installed packages)."))
		}

		for _, c := range ov.AllCasks {
			fmt.Fprintf(&b, "- %s (version: %s)\n", c.ID.Name, c.Version)
			if len(c.DependsOn) > 0 {
				fmt.Fprintf(&b, "  %s %s\n", p.paint(styleCask, "Homebrew 'depends_on':"), dependsOn(c.DependsOn))
			}
		}
	}

	if len(ov.Externals) > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.paint(styleHeading, "Declared dependencies that are not installed:"))
		for _, e := range ov.Externals {
			fmt.Fprintf(&b, "  %s %s %s\n", e.From, p.paint(styleDim, iconArrow), e.Dependency.ID())
		}
	}

	return b.String()
}

// field writes an indented "Label: value" line.
func (p *Printer) field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", p.paint(styleLabel, label+":"), value)
}

// names joins ids, coloring casks.
func (p *Printer) names(ids []brew.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = p.pkg(id)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) namesOrNone(ids []brew.ID) string {
	if len(ids) == 0 {
		return "None"
	}
	return p.names(ids)
}

// pkg renders one package name, marking casks.
func (p *Printer) pkg(id brew.ID) string {
	if id.Kind == brew.KindCask {
		return p.paint(styleCask, id.String())
	}
	return id.Name
}

func bareNames(ids []brew.ID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	return strings.Join(names, ", ")
}

// dependsOn renders a cask depends_on stanza as "formula: a, b; cask: c".
func dependsOn(deps []brew.Dependency) string {
	byKind := map[brew.Kind][]string{}
	for _, d := range deps {
		byKind[d.Kind] = append(byKind[d.Kind], d.Name)
	}
	kinds := make([]brew.Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s: %s", k, strings.Join(byKind[k], ", "))
	}
	return strings.Join(parts, "; ")
}
