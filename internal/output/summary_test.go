package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/blackwell-systems/brewdeps/internal/analyzer"
	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

func testAnalyzer() *analyzer.Analyzer {
	snap := &brew.Snapshot{
		Formulae: []brew.Formula{
			{Name: "htop", Version: "3.3.0", InstalledVersions: []string{"3.3.0"}, Desc: "Improved top", Dependencies: []string{"ncurses", "libtool"}, InstalledOnRequest: true},
			{Name: "libtool", Version: "2.4.7", InstalledVersions: []string{"2.4.6"}, Outdated: true, Dependencies: []string{"m4"}},
			{Name: "m4", Dependencies: []string{}},
			{Name: "ncurses", Dependencies: []string{}},
			{Name: "leftover", Dependencies: []string{}},
			{Name: "libpcap", Dependencies: []string{}},
			{Name: "git", Dependencies: []string{"gettext"}, InstalledOnRequest: true},
		},
		Casks: []brew.Cask{
			{
				Name: "wireshark", DisplayName: "Wireshark", Desc: "Network protocol analyzer",
				Version: "4.2.3", InstalledVersion: "4.2.2", Outdated: true,
				Dependencies: []string{"libpcap"}, Apps: []string{"Wireshark.app"},
				AutoUpdates: true, Homepage: "https://www.wireshark.org/", InstalledTime: 1704110400,
			},
			{Name: "firefox", Version: "122.0", InstalledVersion: "122.0", Dependencies: []string{}},
		},
	}
	return analyzer.New(graph.Build(snap.Records()))
}

func plain() *Printer { return NewPrinter(&bytes.Buffer{}, false) }

func report(t *testing.T, q analyzer.Query) *analyzer.Report {
	t.Helper()
	r, err := testAnalyzer().Package(q)
	if err != nil {
		t.Fatalf("Package(%s) failed: %v", q.Name, err)
	}
	return r
}

func TestRenderReport_TopLevelFormula(t *testing.T) {
	out := plain().RenderReport(report(t, analyzer.Query{Name: "htop"}))

	for _, want := range []string{
		"Analyzing 'htop' (formula):",
		"Description: Improved top",
		"Version: 3.3.0",
		"Installed directly by user (flagged 'installed_on_request').",
		"Directly depends on: ncurses, libtool",
		"Also depends on (transitive): ncurses, libtool, m4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_DependencyFormula(t *testing.T) {
	out := plain().RenderReport(report(t, analyzer.Query{Name: "libtool"}))

	for _, want := range []string{
		"Version: 2.4.6 → 2.4.7 available (outdated)",
		"Installed because of: htop",
		"(These packages depend on 'libtool' to function)",
		"Directly depends on: m4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_LeafWithoutRequestFlag(t *testing.T) {
	out := plain().RenderReport(report(t, analyzer.Query{Name: "leftover"}))

	if !strings.Contains(out, "it's a top-level package with no installed dependents") {
		t.Errorf("unexpected install reason:\n%s", out)
	}
	if !strings.Contains(out, "Directly depends on: None") || !strings.Contains(out, "Also depends on (transitive): None") {
		t.Errorf("expected None for empty dependency lists:\n%s", out)
	}
}

func TestRenderReport_External(t *testing.T) {
	out := plain().RenderReport(report(t, analyzer.Query{Name: "git"}))
	if !strings.Contains(out, "Not installed: gettext") {
		t.Errorf("expected external dependency line:\n%s", out)
	}
}

func TestRenderReport_Cask(t *testing.T) {
	out := plain().RenderReport(report(t, analyzer.Query{Name: "wireshark"}))

	for _, want := range []string{
		"Analyzing 'wireshark' (cask):",
		"Name: Wireshark",
		"Description: Network protocol analyzer",
		"Version: 4.2.2 → 4.2.3 available (outdated)",
		"App: Wireshark.app",
		"Auto-updates: Yes",
		"Homepage: https://www.wireshark.org/",
		"Installed: 2024-01-0",
		"Depends on: libpcap",
		"Also depends on (transitive): libpcap",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Required by") {
		t.Errorf("wireshark has no dependents:\n%s", out)
	}

	firefox := plain().RenderReport(report(t, analyzer.Query{Name: "firefox"}))
	if !strings.Contains(firefox, "Version: 122.0 (up to date)") {
		t.Errorf("firefox version line:\n%s", firefox)
	}
	if strings.Contains(firefox, "transitive") {
		t.Errorf("firefox has no dependencies:\n%s", firefox)
	}
}

func TestRenderOverview(t *testing.T) {
	out := plain().RenderOverview(testAnalyzer().Overview())

	for _, want := range []string{
		"Formulae you might have explicitly installed:",
		"Top-level packages (no other installed packages depend on these): git, htop, leftover",
		"'installed_on_request' flagged packages: git, htop",
		"Casks:",
		"Top-level casks (no other installed packages depend on these): firefox, wireshark",
		"- firefox (version: 122.0)",
		"- wireshark (version: 4.2.2)",
		"Homebrew 'depends_on': formula: libpcap",
		"git → gettext",
		"Installed as dependencies but no longer needed: leftover",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOverview_NoTopLevel(t *testing.T) {
	snap := &brew.Snapshot{Formulae: []brew.Formula{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
	}}
	ov := analyzer.New(graph.Build(snap.Records())).Overview()
	out := plain().RenderOverview(ov)

	if !strings.Contains(out, "None found (all formulae seem to be dependencies of other installed packages).") {
		t.Errorf("expected none-found line:\n%s", out)
	}
	if !strings.Contains(out, "No formulae found with 'installed_on_request' flag.") {
		t.Errorf("expected no-flag line:\n%s", out)
	}
	if strings.Contains(out, "Casks:") {
		t.Errorf("no casks section expected:\n%s", out)
	}
}

func TestPrinterLines(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf, false)

	p.Successf("Fetched %d packages", 3)
	p.Warnf("cache unreadable")
	p.Infof("using cache")
	p.File("htop_dependencies.dot")

	want := "✓ Fetched 3 packages\n! cache unreadable\n› using cache\n  → htop_dependencies.dot\n"
	if got := buf.String(); got != want {
		t.Errorf("printer output = %q, want %q", got, want)
	}
}

func TestIsColorEnabled(t *testing.T) {
	if IsColorEnabled(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	t.Setenv("NO_COLOR", "1")
	if IsColorEnabled(&bytes.Buffer{}) {
		t.Error("NO_COLOR should disable color")
	}
}
