package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blackwell-systems/brewdeps/internal/analyzer"
	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/cache"
	"github.com/blackwell-systems/brewdeps/internal/config"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
	"github.com/blackwell-systems/brewdeps/internal/graph"
	"github.com/blackwell-systems/brewdeps/internal/output"
	"github.com/blackwell-systems/brewdeps/internal/scanner"
	"github.com/blackwell-systems/brewdeps/internal/store"
	"github.com/blackwell-systems/brewdeps/internal/watcher"
)

// runner performs one load, build, query and render cycle per call to
// analyze. Every cycle builds its own graph.
type runner struct {
	env *env
	cfg config.Config

	query      *analyzer.Query
	format     string
	image      output.ImageFormat
	outputFile string
	noImage    bool
	dbPath     string
	spinner    bool

	printer *output.Printer
}

func (r *runner) analyze(ctx context.Context, force bool) error {
	logger := loggerFromContext(ctx)

	res, err := r.load(ctx, force)
	if err != nil {
		return err
	}
	snap := res.Snapshot
	if res.FromCache {
		logger.Infof("Loaded %d formulae and %d casks from cache (fetched %s ago)",
			len(snap.Formulae), len(snap.Casks), time.Since(res.FetchedAt).Round(time.Second))
	} else {
		logger.Infof("Fetched data for %d formulae and %d casks", len(snap.Formulae), len(snap.Casks))
	}

	prog := newProgress(logger)
	var opts []graph.Option
	if !r.cfg.BuildDependencies {
		opts = append(opts, graph.WithoutBuildDependencies())
	}
	g := graph.Build(snap.Records(), opts...)
	prog.done(fmt.Sprintf("Built graph with %d nodes and %d edges", g.Len(), g.EdgeCount()))

	for _, ext := range g.Externals() {
		logger.Debug("dependency not installed", "package", ext.From.String(), "dependency", ext.Dependency.ID().String())
	}

	if r.dbPath != "" {
		if err := r.index(ctx, g, res.FetchedAt); err != nil {
			return err
		}
	}

	a := analyzer.New(g)
	if r.query == nil {
		return r.renderAll(ctx, a)
	}
	return r.renderPackage(ctx, a, *r.query)
}

func (r *runner) load(ctx context.Context, force bool) (*scanner.Result, error) {
	src := r.env.newSource(r.cfg.Brew)
	if r.spinner {
		src = spinningSource{Source: src, w: r.env.stderr, timeout: r.cfg.FetchTimeout}
	}

	opts := []scanner.Option{
		scanner.WithTTL(r.cfg.CacheTTL),
		scanner.WithLogger(loggerFromContext(ctx)),
	}
	if r.cfg.InvalidateOnChange && r.env.kegDirs != nil {
		if dirs := r.env.kegDirs(r.cfg.Brew); len(dirs) > 0 {
			opts = append(opts, scanner.WithChangeCheck(func(since time.Time) bool {
				return brew.ChangedSince(dirs, since)
			}))
		}
	}
	s := scanner.New(src, cache.NewFile(r.cfg.CacheDir), opts...)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()
	return s.Load(ctx, force)
}

// spinningSource shows a spinner while the wrapped source fetches. Cache
// hits never reach it, so no spinner is drawn for them.
type spinningSource struct {
	scanner.Source
	w       io.Writer
	timeout time.Duration
}

func (s spinningSource) Installed(ctx context.Context) (*brew.Snapshot, error) {
	sp := output.NewSpinner("Fetching Homebrew data").WithTimeout(s.timeout)
	sp.SetWriter(s.w)
	sp.Start()
	defer sp.Stop()
	return s.Source.Installed(ctx)
}

func (r *runner) index(ctx context.Context, g *graph.Graph, fetchedAt time.Time) error {
	st, err := store.Open(r.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if err := st.WriteGraph(ctx, g, fetchedAt); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}
	loggerFromContext(ctx).Info("Wrote dependency index", "path", r.dbPath, "packages", g.Len(), "edges", g.EdgeCount())
	return nil
}

func (r *runner) renderPackage(ctx context.Context, a *analyzer.Analyzer, q analyzer.Query) error {
	report, err := a.Package(q)
	if err != nil {
		return err
	}
	r.printer.Print(r.printer.RenderReport(report))

	switch r.format {
	case "tree":
		tree, err := a.Tree(q, r.cfg.Depth)
		if err != nil {
			return err
		}
		r.printer.Heading("Dependency tree for '%s' (%s):", report.ID.Name, depthLabel(r.cfg.Depth))
		r.printer.Print(r.printer.RenderTree(tree))
	case "dot":
		sub, err := a.Export(&q)
		if err != nil {
			return err
		}
		path := r.outputFile
		if path == "" {
			path = output.DefaultDOTPath(report.ID.Name)
		}
		id := report.ID
		return r.writeGraph(ctx, sub, path, output.DOTOptions{
			Name:      report.ID.Name + "_dependencies",
			Highlight: &id,
		})
	}
	return nil
}

func (r *runner) renderAll(ctx context.Context, a *analyzer.Analyzer) error {
	switch r.format {
	case "tree":
		forest, err := a.Forest(r.cfg.Depth)
		if err != nil {
			return err
		}
		r.printer.Heading("Dependency trees for %d packages (%s):", len(forest), depthLabel(r.cfg.Depth))
		r.printer.Print(r.printer.RenderForest(forest))
	case "dot":
		g, err := a.Export(nil)
		if err != nil {
			return err
		}
		path := r.outputFile
		if path == "" {
			path = output.DefaultDOTPath("")
		}
		return r.writeGraph(ctx, g, path, output.DOTOptions{})
	default:
		r.printer.Print(r.printer.RenderOverview(a.Overview()))
	}
	return nil
}

// writeGraph writes the DOT file and renders the image next to it. A
// render failure is returned after the DOT file is on disk.
func (r *runner) writeGraph(ctx context.Context, g *graph.Graph, path string, opts output.DOTOptions) error {
	if err := output.WriteDOT(path, output.ToDOT(g, opts)); err != nil {
		return err
	}
	r.printer.Successf("Wrote DOT graph (%d packages, %d dependencies)", g.Len(), g.EdgeCount())
	r.printer.File(path)

	if r.noImage {
		r.printer.Infof("Render it with Graphviz, e.g. dot -T%s %s -o %s", r.image, path, output.ImagePath(path, r.image))
		return nil
	}

	image, err := output.RenderImage(ctx, r.env.newRenderer(r.cfg.Renderer), path, r.image)
	if err != nil {
		return err
	}
	r.printer.Successf("Rendered %s image", strings.ToUpper(string(r.image)))
	r.printer.File(image)
	return nil
}

// watch re-runs analyze with fresh data after each burst of changes under
// the Homebrew prefix until interrupted.
func (r *runner) watch(ctx context.Context) error {
	logger := loggerFromContext(ctx)

	prefix, err := r.env.prefix(ctx, r.cfg.Brew)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Dirs(prefix),
		watcher.WithDebounce(r.cfg.WatchDebounce),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return errs.Wrap(errs.ErrCodeDataUnavailable, err, "cannot watch Homebrew prefix %s", prefix)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching for Homebrew changes (Ctrl-C to stop)", "dirs", strings.Join(w.Roots(), ", "))
	err = w.Run(ctx, func(ctx context.Context) error {
		logger.Info("Installed packages changed, refreshing")
		return r.analyze(ctx, true)
	})
	logger.Info("Stopped watching")
	return err
}

func depthLabel(depth int) string {
	if depth < 0 {
		return "unlimited depth"
	}
	return fmt.Sprintf("max depth %d", depth)
}
