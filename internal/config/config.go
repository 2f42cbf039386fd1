// Package config provides configuration file parsing for brewdeps.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// Renderer names accepted by the renderer key.
const (
	RendererGraphviz = "graphviz"
	RendererDot      = "dot"
)

// Config holds settings from the config file after environment overrides.
// Command-line flags are applied on top by the caller.
type Config struct {
	Depth             int           `toml:"depth"`
	Format            string        `toml:"format"`
	ImageFormat       string        `toml:"image_format"`
	Renderer          string        `toml:"renderer"`
	Brew              string        `toml:"brew"`
	CacheDir          string        `toml:"cache_dir"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
	FetchTimeout      time.Duration `toml:"fetch_timeout"`
	BuildDependencies bool          `toml:"build_dependencies"`
	Color             bool          `toml:"color"`
	WatchDebounce     time.Duration `toml:"watch_debounce"`

	// InvalidateOnChange discards a fresh cache when Cellar or Caskroom
	// changed after it was written. Off by default: a fresh cache is served
	// until the TTL expires or --refresh-cache is given.
	InvalidateOnChange bool `toml:"cache_invalidate_on_change"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Depth:             3,
		Format:            "summary",
		ImageFormat:       "png",
		Renderer:          RendererGraphviz,
		Brew:              "brew",
		CacheTTL:          time.Hour,
		FetchTimeout:      2 * time.Minute,
		BuildDependencies: true,
		Color:             true,
		WatchDebounce:     2 * time.Second,
	}
}

// Dir returns the brewdeps config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/brewdeps if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "brewdeps"), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StateDir returns where the cache file lives: $BREWDEPS_CACHE_DIR, else
// $XDG_STATE_HOME/brewdeps, else ~/.local/state/brewdeps.
func StateDir() (string, error) {
	if dir := os.Getenv("BREWDEPS_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "brewdeps"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "brewdeps"), nil
}

// Load reads the config file at path over the defaults. A missing file is
// not an error. Unknown keys and invalid values are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "failed to parse config %s", path)
	}
	if err == nil {
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, errs.New(errs.ErrCodeInvalidInput, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.Brew = envOrDefault("BREWDEPS_BREW", cfg.Brew)
	cfg.CacheDir = envOrDefault("BREWDEPS_CACHE_DIR", cfg.CacheDir)
	if cfg.CacheDir == "" {
		dir, err := StateDir()
		if err != nil {
			return Config{}, err
		}
		cfg.CacheDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	switch c.Format {
	case "summary", "tree", "dot":
	default:
		return errs.New(errs.ErrCodeInvalidInput, "invalid format %q (expected summary, tree or dot)", c.Format)
	}
	switch strings.ToLower(c.ImageFormat) {
	case "png", "svg", "jpg", "jpeg":
	default:
		return errs.New(errs.ErrCodeInvalidInput, "invalid image_format %q (expected png, svg or jpg)", c.ImageFormat)
	}
	switch c.Renderer {
	case RendererGraphviz, RendererDot:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "invalid renderer %q (expected %s or %s)", c.Renderer, RendererGraphviz, RendererDot)
	}
	if c.Brew == "" {
		return errs.New(errs.ErrCodeInvalidInput, "brew must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"cache_ttl":      c.CacheTTL,
		"fetch_timeout":  c.FetchTimeout,
		"watch_debounce": c.WatchDebounce,
	} {
		if d <= 0 {
			return errs.New(errs.ErrCodeInvalidInput, "%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
