// Package scanner loads the installed-package registry, serving it from the
// on-disk cache while the cache is fresh and fetching it from Homebrew
// otherwise.
package scanner

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/cache"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// Source fetches a fresh snapshot of installed packages.
// *brew.Client implements it.
type Source interface {
	Installed(ctx context.Context) (*brew.Snapshot, error)
}

// Result is a loaded registry.
type Result struct {
	Snapshot  *brew.Snapshot
	FromCache bool
	FetchedAt time.Time
}

// Scanner loads the registry through the cache.
type Scanner struct {
	source  Source
	file    *cache.File
	ttl     time.Duration
	now     func() time.Time
	changed func(since time.Time) bool
	logger  *log.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTTL sets how long cached data stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(s *Scanner) { s.ttl = ttl }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithChangeCheck invalidates a fresh cache entry when changed reports
// that packages were installed or removed after the entry was fetched.
// Without it a fresh entry is always served.
func WithChangeCheck(changed func(since time.Time) bool) Option {
	return func(s *Scanner) { s.changed = changed }
}

// New creates a Scanner that reads through file and falls back to source.
func New(source Source, file *cache.File, opts ...Option) *Scanner {
	s := &Scanner{
		source: source,
		file:   file,
		ttl:    cache.DefaultTTL,
		now:    time.Now,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Usable reports whether a cache entry may be served instead of fetching.
func Usable(now time.Time, entry *cache.Entry, ttl time.Duration, force bool) bool {
	if force || entry == nil {
		return false
	}
	return entry.Fresh(now, ttl)
}

// Load returns the registry. Unless force is set, a fresh cache entry is
// returned without touching Homebrew or rewriting the cache. Otherwise the
// source is queried and the result persisted. Fetch failures, including an
// empty registry, are errs.ErrCodeDataUnavailable.
func (s *Scanner) Load(ctx context.Context, force bool) (*Result, error) {
	now := s.now()

	if !force {
		entry := s.readCache()
		if Usable(now, entry, s.ttl, false) && s.changed != nil && s.changed(entry.FetchedAt()) {
			s.logger.Info("Homebrew packages changed since the cache was written; refreshing")
			entry = nil
		}
		if Usable(now, entry, s.ttl, false) {
			s.logger.Debug("using cached package data",
				"path", s.file.Path(),
				"age", entry.Age(now),
				"packages", len(entry.Formulae)+len(entry.Casks))
			return &Result{
				Snapshot:  entry.Snapshot(),
				FromCache: true,
				FetchedAt: entry.FetchedAt(),
			}, nil
		}
		if entry != nil {
			s.logger.Debug("cached package data expired", "age", entry.Age(now), "ttl", s.ttl)
		}
	}

	snap, err := s.source.Installed(ctx)
	if err != nil {
		if errs.CodeOf(err) == "" {
			return nil, errs.Wrap(errs.ErrCodeDataUnavailable, err, "failed to fetch installed packages")
		}
		return nil, err
	}
	if snap == nil || snap.Len() == 0 {
		return nil, errs.New(errs.ErrCodeDataUnavailable, "Homebrew reported no installed packages")
	}

	fetchedAt := s.now()
	if err := s.file.Write(cache.NewEntry(snap, fetchedAt)); err != nil {
		s.logger.Warn("failed to write cache", "path", s.file.Path(), "err", err)
	} else {
		s.logger.Debug("cached package data", "path", s.file.Path(),
			"formulae", len(snap.Formulae), "casks", len(snap.Casks))
	}

	return &Result{Snapshot: snap, FetchedAt: fetchedAt}, nil
}

// readCache returns the cached entry, or nil when there is none or it is
// unreadable. Corruption is logged and otherwise treated as a miss.
func (s *Scanner) readCache() *cache.Entry {
	entry, err := s.file.Read()
	switch {
	case err == nil:
		return entry
	case errors.Is(err, cache.ErrMiss):
		s.logger.Debug("no cached package data", "path", s.file.Path())
	default:
		s.logger.Warn("ignoring unreadable cache", "err", err)
	}
	return nil
}
