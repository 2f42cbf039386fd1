package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/brewdeps/internal/brew"
)

// DefaultDebounce is the quiet period after the last event before the
// callback runs.
const DefaultDebounce = 2 * time.Second

// Dirs returns the directories Homebrew installs kegs into under prefix.
func Dirs(prefix string) []string {
	return brew.KegDirs(prefix)
}

// Watcher watches Homebrew's keg directories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    map[string]bool
	watched  []string
	debounce time.Duration
	logger   *log.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger for watch diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher over dirs and their immediate subdirectories.
// Directories that do not exist are skipped; it is an error if none do.
func New(dirs []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		roots:    make(map[string]bool),
		debounce: DefaultDebounce,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			w.logger.Debug("skipping missing watch directory", "dir", dir)
			continue
		}
		if err := w.add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
		w.roots[dir] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				if err := w.add(filepath.Join(dir, e.Name())); err != nil {
					w.logger.Debug("skipping subdirectory", "dir", e.Name(), "err", err)
				}
			}
		}
	}

	if len(w.roots) == 0 {
		fsw.Close()
		return nil, fmt.Errorf("none of %v exist; is Homebrew installed?", dirs)
	}
	return w, nil
}

func (w *Watcher) add(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watched = append(w.watched, dir)
	return nil
}

// Roots returns the top-level directories being watched.
func (w *Watcher) Roots() []string {
	var roots []string
	for _, dir := range w.watched {
		if w.roots[dir] {
			roots = append(roots, dir)
		}
	}
	return roots
}

// Run blocks until ctx is cancelled, calling onChange once per burst of
// changes. A callback error is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("homebrew change", "op", ev.Op.String(), "path", ev.Name)
			if ev.Has(fsnotify.Create) && w.roots[filepath.Dir(ev.Name)] {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.add(ev.Name); err != nil {
						w.logger.Debug("skipping new subdirectory", "err", err)
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "err", err)

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("update failed", "err", err)
			}
		}
	}
}

// relevant drops attribute-only changes, which Homebrew's own bookkeeping
// produces without changing the installed set.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	return ev.Op&^fsnotify.Chmod != 0
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
