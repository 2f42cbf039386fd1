package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/config"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
	"github.com/blackwell-systems/brewdeps/internal/output"
	"github.com/blackwell-systems/brewdeps/internal/scanner"
)

type fakeSource struct {
	snap  *brew.Snapshot
	err   error
	calls atomic.Int32
}

func (s *fakeSource) Installed(ctx context.Context) (*brew.Snapshot, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

type fakeRenderer struct {
	err     error
	formats []output.ImageFormat
}

func (r *fakeRenderer) Render(ctx context.Context, dotPath string, format output.ImageFormat, imagePath string) error {
	r.formats = append(r.formats, format)
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(imagePath, []byte("image"), 0644)
}

func fixture() *brew.Snapshot {
	return &brew.Snapshot{
		Formulae: []brew.Formula{
			{Name: "htop", Version: "3.3.0", Dependencies: []string{"ncurses", "libtool"}, BuildDependencies: []string{"pkgconf"}, InstalledOnRequest: true},
			{Name: "libtool", Version: "2.4.7", Dependencies: []string{"m4"}},
			{Name: "m4", Dependencies: []string{}},
			{Name: "ncurses", Dependencies: []string{}},
			{Name: "pkgconf", Dependencies: []string{}},
			{Name: "git", Dependencies: []string{"gettext"}, InstalledOnRequest: true},
			{Name: "docker", Dependencies: []string{}},
		},
		Casks: []brew.Cask{
			{Name: "docker", Version: "4.26.1", InstalledVersion: "4.26.1", Dependencies: []string{}},
		},
	}
}

type testEnv struct {
	*env
	source   *fakeSource
	renderer *fakeRenderer
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("BREWDEPS_CACHE_DIR", t.TempDir())
	t.Setenv("BREWDEPS_BREW", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	te := &testEnv{
		source:   &fakeSource{snap: fixture()},
		renderer: &fakeRenderer{},
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
	}
	te.env = &env{
		stdout: te.stdout,
		stderr: te.stderr,
		newSource: func(string) scanner.Source {
			return te.source
		},
		prefix: func(context.Context, string) (string, error) {
			return "", errors.New("no prefix in tests")
		},
		newRenderer: func(string) output.Renderer {
			return te.renderer
		},
	}
	return te
}

func (te *testEnv) execute(ctx context.Context, args ...string) error {
	cmd := newRootCmd(te.env)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (te *testEnv) run(args ...string) error {
	return te.execute(context.Background(), args...)
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd(defaultEnv())

	if cmd.Use != "brewdeps [package]" {
		t.Errorf("expected Use to be 'brewdeps [package]', got '%s'", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}
	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("expected SilenceUsage and SilenceErrors to be true")
	}

	for _, name := range []string{
		"format", "depth", "output-file", "image-format", "png", "svg", "jpg", "cask", "formula",
		"refresh-cache", "no-image", "build-deps", "db", "watch", "config", "no-color", "verbose",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
	if f := cmd.Flags().ShorthandLookup("o"); f == nil || f.Name != "output-file" {
		t.Error("expected -o to be shorthand for --output-file")
	}
}

func TestRun_PackageSummary(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("htop"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	assertContains(t, te.stdout.String(),
		"Analyzing 'htop' (formula):",
		"Installed directly by user (flagged 'installed_on_request').",
		"Directly depends on: ncurses, libtool, pkgconf",
		"Also depends on (transitive): ncurses, libtool, pkgconf, m4",
	)
	assertContains(t, te.stderr.String(), "Fetched data for 7 formulae and 1 casks")
}

func TestRun_UsesCacheUntilRefresh(t *testing.T) {
	te := newTestEnv(t)

	for i := 0; i < 2; i++ {
		if err := te.run("htop"); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}
	if n := te.source.calls.Load(); n != 1 {
		t.Errorf("expected 1 fetch with a fresh cache, got %d", n)
	}
	assertContains(t, te.stderr.String(), "from cache")

	if err := te.run("htop", "--refresh-cache"); err != nil {
		t.Fatal(err)
	}
	if n := te.source.calls.Load(); n != 2 {
		t.Errorf("expected --refresh-cache to fetch again, got %d fetches", n)
	}
}

// setupKegPrefix creates a prefix whose Cellar was last modified an hour
// ago and points the test env at it.
func setupKegPrefix(t *testing.T, te *testEnv) string {
	t.Helper()
	prefix := t.TempDir()
	cellar := filepath.Join(prefix, "Cellar")
	if err := os.MkdirAll(cellar, 0755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(cellar, old, old); err != nil {
		t.Fatal(err)
	}
	te.kegDirs = func(string) []string { return brew.KegDirs(prefix) }
	return cellar
}

func touchFuture(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func TestRun_FreshCacheServedAfterKegChange(t *testing.T) {
	te := newTestEnv(t)
	cellar := setupKegPrefix(t, te)

	if err := te.run("htop"); err != nil {
		t.Fatal(err)
	}
	touchFuture(t, cellar)
	if err := te.run("htop"); err != nil {
		t.Fatal(err)
	}
	if n := te.source.calls.Load(); n != 1 {
		t.Errorf("expected the fresh cache to be served by default, got %d fetches", n)
	}
	assertContains(t, te.stderr.String(), "from cache")
}

func TestRun_CacheInvalidatedByInstall(t *testing.T) {
	te := newTestEnv(t)
	cellar := setupKegPrefix(t, te)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("cache_invalidate_on_change = true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := te.run("htop", "--config", cfgPath); err != nil {
			t.Fatal(err)
		}
	}
	if n := te.source.calls.Load(); n != 1 {
		t.Fatalf("expected cache hit while nothing changed, got %d fetches", n)
	}

	touchFuture(t, cellar)
	if err := te.run("htop", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	if n := te.source.calls.Load(); n != 2 {
		t.Errorf("expected a fetch after the Cellar changed, got %d fetches", n)
	}
}

func TestRun_Overview(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run(); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(),
		"Formulae you might have explicitly installed:",
		"Top-level packages (no other installed packages depend on these): docker, git, htop",
		"- docker (version: 4.26.1)",
		"git → gettext",
	)
}

func TestRun_Tree(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("htop", "--format", "tree", "--depth", "1"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(),
		"Dependency tree for 'htop' (max depth 1):",
		"├── ncurses",
		"├── libtool …",
		"└── pkgconf [build]",
	)
}

func TestRun_Forest(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("--format", "tree", "--depth=-1"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(),
		"(unlimited depth)",
		"htop\n",
		"│   └── m4",
		"docker (cask)",
	)
}

func TestRun_DotWithImage(t *testing.T) {
	te := newTestEnv(t)
	dotPath := filepath.Join(t.TempDir(), "out", "htop.dot")

	if err := te.run("htop", "--svg", "-o", dotPath); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatalf("DOT file not written: %v", err)
	}
	dot := string(data)
	assertContains(t, dot, `digraph "htop_dependencies"`, `"htop" -> "libtool"`)
	if strings.Contains(dot, `"git"`) {
		t.Error("package DOT export should only contain htop and its dependencies")
	}

	if len(te.renderer.formats) != 1 || te.renderer.formats[0] != output.SVG {
		t.Errorf("renderer formats = %v, want [svg]", te.renderer.formats)
	}
	imagePath := strings.TrimSuffix(dotPath, ".dot") + ".svg"
	if _, err := os.Stat(imagePath); err != nil {
		t.Errorf("image not written: %v", err)
	}
	assertContains(t, te.stdout.String(), dotPath, imagePath, "Rendered SVG image")
}

func TestRun_NoImage(t *testing.T) {
	te := newTestEnv(t)
	dotPath := filepath.Join(t.TempDir(), "all.dot")

	if err := te.run("--format", "dot", "--no-image", "-o", dotPath); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dotPath); err != nil {
		t.Fatalf("DOT file not written: %v", err)
	}
	if len(te.renderer.formats) != 0 {
		t.Errorf("renderer should not run with --no-image, got %v", te.renderer.formats)
	}
	assertContains(t, te.stdout.String(),
		"Wrote DOT graph (8 packages, 4 dependencies)",
		"Render it with Graphviz, e.g. dot -Tpng "+dotPath+" -o "+filepath.Join(filepath.Dir(dotPath), "all.png"),
	)
}

func TestRun_OutputFileIgnoredForSummary(t *testing.T) {
	te := newTestEnv(t)
	dotPath := filepath.Join(t.TempDir(), "htop.dot")

	if err := te.run("htop", "-o", dotPath); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "! --output-file only applies to --format dot; ignoring it for summary output")
	if _, err := os.Stat(dotPath); !os.IsNotExist(err) {
		t.Errorf("no DOT file should be written for summary output, stat err = %v", err)
	}
}

func TestRun_RenderFailureKeepsDOT(t *testing.T) {
	te := newTestEnv(t)
	te.renderer.err = errors.New("exec: \"dot\": executable file not found in $PATH")
	dotPath := filepath.Join(t.TempDir(), "htop.dot")

	err := te.run("htop", "--image-format", "jpg", "-o", dotPath)
	if !errs.Is(err, errs.ErrCodeRenderToolMissing) {
		t.Fatalf("expected RENDER_TOOL_MISSING, got %v", err)
	}
	if errs.ExitCode(err) != errs.ExitRenderFailed {
		t.Errorf("ExitCode = %d, want %d", errs.ExitCode(err), errs.ExitRenderFailed)
	}
	if _, statErr := os.Stat(dotPath); statErr != nil {
		t.Errorf("DOT file should be kept after render failure: %v", statErr)
	}
	if !strings.Contains(err.Error(), dotPath) {
		t.Errorf("error should name the kept DOT file: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		sourceErr error
		wantCode  int
	}{
		{"unknown package", []string{"nosuch"}, nil, errs.ExitPackageNotFound},
		{"formula named as cask", []string{"htop", "--cask"}, nil, errs.ExitPackageNotFound},
		{"brew fails", []string{"htop"}, errors.New("brew: command not found"), errs.ExitDataUnavailable},
		{"cask without package", []string{"--cask"}, nil, errs.ExitFailure},
		{"bad format", []string{"--format", "json"}, nil, errs.ExitFailure},
		{"bad image format", []string{"--image-format", "gif"}, nil, errs.ExitFailure},
		{"conflicting shorthands", []string{"--png", "--svg"}, nil, errs.ExitFailure},
		{"too many args", []string{"htop", "git"}, nil, errs.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			te.source.err = tt.sourceErr

			err := te.run(tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errs.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.wantCode)
			}
		})
	}
}

func TestRun_CaskDisambiguation(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("docker"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "Analyzing 'docker' (cask):", "Version: 4.26.1 (up to date)")

	te.stdout.Reset()
	if err := te.run("docker", "--cask"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "Analyzing 'docker' (cask):")

	te.stdout.Reset()
	if err := te.run("docker", "--formula"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "Analyzing 'docker' (formula):")

	if err := te.run("docker", "--cask", "--formula"); err == nil {
		t.Error("expected --cask and --formula to be mutually exclusive")
	}
}

func TestRun_WithoutBuildDependencies(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("htop", "--build-deps=false"); err != nil {
		t.Fatal(err)
	}
	out := te.stdout.String()
	assertContains(t, out, "Directly depends on: ncurses, libtool\n")
	if strings.Contains(out, "pkgconf") {
		t.Errorf("build dependency should be excluded:\n%s", out)
	}
}

func TestRun_WritesDatabase(t *testing.T) {
	te := newTestEnv(t)
	dbPath := filepath.Join(t.TempDir(), "deps.db")

	if err := te.run("--db", dbPath); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var packages, deps int
	if err := db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&packages); err != nil {
		t.Fatal(err)
	}
	if packages != 8 {
		t.Errorf("expected 8 packages in database, got %d", packages)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM dependencies WHERE package = 'htop'").Scan(&deps); err != nil {
		t.Fatal(err)
	}
	if deps != 3 {
		t.Errorf("expected 3 dependencies for htop, got %d", deps)
	}
	assertContains(t, te.stderr.String(), "Wrote dependency index")
}

func TestRun_ConfigFile(t *testing.T) {
	te := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("format = \"tree\"\ndepth = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := te.run("htop", "--config", path); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "Dependency tree for 'htop' (max depth 1):")

	te.stdout.Reset()
	if err := te.run("htop", "--config", path, "--depth", "2"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "(max depth 2)", "│   └── m4")
}

func TestRun_ConfigFileMissing(t *testing.T) {
	te := newTestEnv(t)

	err := te.run("--config", filepath.Join(t.TempDir(), "nope.toml"))
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for a missing --config file, got %v", err)
	}
}

func TestRun_Watch(t *testing.T) {
	te := newTestEnv(t)
	prefix := t.TempDir()
	cellar := filepath.Join(prefix, "Cellar")
	if err := os.MkdirAll(cellar, 0755); err != nil {
		t.Fatal(err)
	}
	te.prefix = func(context.Context, string) (string, error) { return prefix, nil }

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("watch_debounce = \"50ms\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- te.execute(ctx, "htop", "--watch", "--config", cfgPath)
	}()

	// Keep touching the Cellar until a refresh happens; the watcher starts
	// only after the first run completes.
	deadline := time.After(10 * time.Second)
	for i := 0; te.source.calls.Load() < 2; i++ {
		select {
		case err := <-done:
			t.Fatalf("watch exited early: %v", err)
		case <-deadline:
			t.Fatal("no refresh after changes in the Cellar")
		case <-time.After(100 * time.Millisecond):
		}
		if err := os.MkdirAll(filepath.Join(cellar, fmt.Sprintf("pkg%d", i)), 0755); err != nil {
			t.Fatal(err)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	if n := strings.Count(te.stdout.String(), "Analyzing 'htop' (formula):"); n < 2 {
		t.Errorf("expected at least 2 reports, got %d", n)
	}
}

func TestRun_WatchWithoutPrefix(t *testing.T) {
	te := newTestEnv(t)
	prefix := t.TempDir()
	te.prefix = func(context.Context, string) (string, error) { return prefix, nil }

	err := te.run("htop", "--watch")
	if !errs.Is(err, errs.ErrCodeDataUnavailable) {
		t.Errorf("expected DATA_UNAVAILABLE when no keg directories exist, got %v", err)
	}
}

func TestResolveFormat(t *testing.T) {
	base := config.Default()

	tests := []struct {
		name         string
		format       string
		image        string
		imageFlagSet bool
		png, svg, jpg bool
		wantFormat   string
		wantImage    output.ImageFormat
	}{
		{name: "defaults", wantFormat: "summary", wantImage: output.PNG},
		{name: "tree", format: "tree", wantFormat: "tree", wantImage: output.PNG},
		{name: "png shorthand", png: true, wantFormat: "dot", wantImage: output.PNG},
		{name: "svg shorthand", format: "tree", svg: true, wantFormat: "dot", wantImage: output.SVG},
		{name: "jpg shorthand", image: "svg", jpg: true, wantFormat: "dot", wantImage: output.JPG},
		{name: "image format implies dot", image: "svg", imageFlagSet: true, wantFormat: "dot", wantImage: output.SVG},
		{name: "config image format alone", image: "svg", wantFormat: "summary", wantImage: output.SVG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.format != "" {
				cfg.Format = tt.format
			}
			if tt.image != "" {
				cfg.ImageFormat = tt.image
			}

			format, image, err := resolveFormat(cfg, tt.imageFlagSet, tt.png, tt.svg, tt.jpg)
			if err != nil {
				t.Fatalf("resolveFormat failed: %v", err)
			}
			if format != tt.wantFormat || image != tt.wantImage {
				t.Errorf("resolveFormat = (%s, %s), want (%s, %s)", format, image, tt.wantFormat, tt.wantImage)
			}
		})
	}
}

func TestVersionFlag(t *testing.T) {
	te := newTestEnv(t)

	if err := te.run("--version"); err != nil {
		t.Fatal(err)
	}
	assertContains(t, te.stdout.String(), "brewdeps dev")
	if te.source.calls.Load() != 0 {
		t.Error("--version should not query Homebrew")
	}
}

func TestDepthLabel(t *testing.T) {
	if got := depthLabel(3); got != "max depth 3" {
		t.Errorf("depthLabel(3) = %q", got)
	}
	if got := depthLabel(-1); got != "unlimited depth" {
		t.Errorf("depthLabel(-1) = %q", got)
	}
}
