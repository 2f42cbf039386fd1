package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/brewdeps/internal/analyzer"
	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/config"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
	"github.com/blackwell-systems/brewdeps/internal/output"
	"github.com/blackwell-systems/brewdeps/internal/scanner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the build information shown by --version. main calls it
// with values injected through ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// env holds the collaborators a run talks to. Tests substitute fakes.
type env struct {
	stdout io.Writer
	stderr io.Writer

	newSource   func(bin string) scanner.Source
	prefix      func(ctx context.Context, bin string) (string, error)
	kegDirs     func(bin string) []string
	newRenderer func(name string) output.Renderer
}

func defaultEnv() *env {
	return &env{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newSource: func(bin string) scanner.Source {
			return brew.NewClient(bin)
		},
		prefix: func(ctx context.Context, bin string) (string, error) {
			return brew.NewClient(bin).Prefix(ctx)
		},
		kegDirs: func(bin string) []string {
			prefix, err := brew.LocalPrefix(bin)
			if err != nil {
				return nil
			}
			return brew.KegDirs(prefix)
		},
		newRenderer: newRenderer,
	}
}

func newRenderer(name string) output.Renderer {
	if name == config.RendererDot {
		return output.DotCommand{}
	}
	return output.Graphviz{}
}

// flags holds the raw command-line values. Values that also exist in the
// config file only win when set explicitly.
type flags struct {
	format      string
	depth       int
	outputFile  string
	imageFormat string
	png         bool
	svg         bool
	jpg         bool
	cask        bool
	formula     bool
	refresh     bool
	noImage     bool
	buildDeps   bool
	dbPath      string
	watch       bool
	configPath  string
	noColor     bool
	verbose     bool
}

// Execute runs the brewdeps command.
func Execute() error {
	return newRootCmd(defaultEnv()).ExecuteContext(context.Background())
}

func newRootCmd(e *env) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "brewdeps [package]",
		Short: "Analyze dependencies between installed Homebrew packages",
		Long: `brewdeps reads the metadata of every installed Homebrew formula and cask,
builds the dependency graph between them, and answers why a package is installed,
what it pulls in, and which packages nothing else needs.

Without a package it prints an overview of the whole installation. Homebrew data
is cached for an hour; use --refresh-cache after installing or removing packages.

Output formats:
  summary  direct and transitive dependencies, dependents, install reason
  tree     indented dependency tree limited by --depth
  dot      Graphviz graph written to a file and rendered to an image`,
		Example: `  # Overview of all installed packages
  brewdeps

  # Why is openssl@3 installed?
  brewdeps openssl@3

  # Dependency tree, four levels deep
  brewdeps ffmpeg --format tree --depth 4

  # Render the graph of a cask as SVG
  brewdeps docker --cask --svg

  # Re-run whenever packages are installed or removed
  brewdeps --format tree --watch`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, &f, args)
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("brewdeps %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "summary", "output format: summary, tree or dot")
	fl.IntVar(&f.depth, "depth", 3, "maximum tree depth (negative for unlimited)")
	fl.StringVarP(&f.outputFile, "output-file", "o", "", "DOT output path (default <package>_dependencies.dot)")
	fl.StringVar(&f.imageFormat, "image-format", "png", "image format for dot output: png, svg or jpg (implies --format dot)")
	fl.BoolVar(&f.png, "png", false, "shorthand for --format dot --image-format png")
	fl.BoolVar(&f.svg, "svg", false, "shorthand for --format dot --image-format svg")
	fl.BoolVar(&f.jpg, "jpg", false, "shorthand for --format dot --image-format jpg")
	fl.BoolVar(&f.cask, "cask", false, "treat the package name as a cask")
	fl.BoolVar(&f.formula, "formula", false, "treat the package name as a formula when a cask shares it")
	fl.BoolVar(&f.refresh, "refresh-cache", false, "ignore cached Homebrew data and fetch it again")
	fl.BoolVar(&f.noImage, "no-image", false, "write the DOT file without rendering an image")
	fl.BoolVar(&f.buildDeps, "build-deps", true, "include build-time dependencies in the graph")
	fl.StringVar(&f.dbPath, "db", "", "also write the dependency graph to a SQLite database at this path")
	fl.BoolVar(&f.watch, "watch", false, "keep running and refresh when installed packages change")
	fl.StringVar(&f.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/brewdeps/config.toml)")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose logging")

	cmd.MarkFlagsMutuallyExclusive("png", "svg", "jpg")
	cmd.MarkFlagsMutuallyExclusive("cask", "formula")

	return cmd
}

func run(cmd *cobra.Command, e *env, f *flags, args []string) error {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	format, imageFormat, err := resolveFormat(cfg, cmd.Flags().Changed("image-format"), f.png, f.svg, f.jpg)
	if err != nil {
		return err
	}

	level := log.InfoLevel
	if f.verbose {
		level = log.DebugLevel
	}
	logger := newLogger(e.stderr, level)
	ctx := withLogger(cmd.Context(), logger)

	var query *analyzer.Query
	if len(args) == 1 {
		query = &analyzer.Query{Name: args[0]}
		switch {
		case f.cask:
			query.Kind = brew.KindCask
			query.KindExplicit = true
		case f.formula:
			query.Kind = brew.KindFormula
			query.KindExplicit = true
		}
	} else if f.cask || f.formula {
		return errs.New(errs.ErrCodeInvalidInput, "--cask and --formula require a package name")
	}

	printer := output.NewPrinter(e.stdout, cfg.Color && output.IsColorEnabled(e.stdout))
	if f.outputFile != "" && format != "dot" {
		printer.Warnf("--output-file only applies to --format dot; ignoring it for %s output", format)
	}

	r := &runner{
		env:        e,
		cfg:        cfg,
		query:      query,
		format:     format,
		image:      imageFormat,
		outputFile: f.outputFile,
		noImage:    f.noImage,
		dbPath:     f.dbPath,
		spinner:    !f.verbose,
		printer:    printer,
	}

	if err := r.analyze(ctx, f.refresh); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}
	return r.watch(ctx)
}

// loadConfig reads the config file. An explicitly named file must exist.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		def, err := config.Path()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to locate config file: %w", err)
		}
		return config.Load(def)
	}
	if _, err := os.Stat(path); err != nil {
		return config.Config{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "cannot read config file %s", path)
	}
	return config.Load(path)
}

// apply overlays explicitly set flags on cfg.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("depth") {
		cfg.Depth = f.depth
	}
	if changed("image-format") {
		cfg.ImageFormat = f.imageFormat
	}
	if changed("build-deps") {
		cfg.BuildDependencies = f.buildDeps
	}
	if f.noColor {
		cfg.Color = false
	}
}

// resolveFormat applies the image shorthands. --png, --svg and --jpg select
// dot output with that image format, and an explicit --image-format implies
// dot output.
func resolveFormat(cfg config.Config, imageFlagSet, png, svg, jpg bool) (string, output.ImageFormat, error) {
	format, image := cfg.Format, cfg.ImageFormat
	switch {
	case png:
		format, image = "dot", string(output.PNG)
	case svg:
		format, image = "dot", string(output.SVG)
	case jpg:
		format, image = "dot", string(output.JPG)
	case imageFlagSet:
		format = "dot"
	}

	imageFormat, err := output.ParseImageFormat(image)
	if err != nil {
		return "", "", err
	}
	return format, imageFormat, nil
}
