// Package cache persists the installed-package snapshot between runs.
//
// The cache is a single JSON file, brew_data.json, holding the snapshot and
// the Unix time it was fetched. An entry is usable only while it is younger
// than the TTL; a missing file is a miss, and a file that cannot be parsed
// or holds no packages is reported as errs.ErrCodeCacheCorrupt so the caller
// can log it and fall back to a fresh fetch.
//
// Concurrent processes are not coordinated. Writes go through a temporary
// file and a rename, so a reader never observes a half-written entry, but
// two racing refreshes simply overwrite each other.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// FileName is the cache file name inside the state directory.
const FileName = "brew_data.json"

// DefaultTTL is how long a cache entry stays valid.
const DefaultTTL = time.Hour

// ErrMiss is returned by File.Read when no cache file exists.
var ErrMiss = errors.New("cache miss")

// Entry is the persisted snapshot plus its fetch time.
type Entry struct {
	Timestamp int64          `json:"timestamp"`
	Formulae  []brew.Formula `json:"formulae"`
	Casks     []brew.Cask    `json:"casks"`
}

// NewEntry wraps a snapshot fetched at the given time.
func NewEntry(snap *brew.Snapshot, fetchedAt time.Time) *Entry {
	return &Entry{
		Timestamp: fetchedAt.Unix(),
		Formulae:  snap.Formulae,
		Casks:     snap.Casks,
	}
}

// FetchedAt returns the entry timestamp as a time.
func (e *Entry) FetchedAt() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// Age returns how old the entry is at now, in whole seconds.
func (e *Entry) Age(now time.Time) time.Duration {
	return time.Duration(now.Unix()-e.Timestamp) * time.Second
}

// Fresh reports whether the entry is still valid at now: 0 <= now - timestamp < ttl.
// A timestamp in the future (clock skew or an edited file) is stale.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	age := e.Age(now)
	return age >= 0 && age < ttl
}

// Snapshot returns the cached packages.
func (e *Entry) Snapshot() *brew.Snapshot {
	return &brew.Snapshot{Formulae: e.Formulae, Casks: e.Casks}
}

// File is the on-disk cache location.
type File struct {
	path string
}

// NewFile returns the cache file inside dir. The directory is created on
// the first write.
func NewFile(dir string) *File {
	return &File{path: filepath.Join(dir, FileName)}
}

// Path returns the cache file path.
func (f *File) Path() string {
	return f.path
}

// Read loads the cache entry. It returns ErrMiss when the file does not
// exist and an errs.ErrCodeCacheCorrupt error when it exists but cannot be
// parsed or holds no packages. Expiry is not checked here.
func (f *File) Read() (*Entry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeCacheCorrupt, err, "failed to read cache %s", f.path)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errs.Wrap(errs.ErrCodeCacheCorrupt, err, "failed to parse cache %s", f.path)
	}
	if entry.Timestamp <= 0 {
		return nil, errs.New(errs.ErrCodeCacheCorrupt, "cache %s has no timestamp", f.path)
	}
	if len(entry.Formulae)+len(entry.Casks) == 0 {
		return nil, errs.New(errs.ErrCodeCacheCorrupt, "cache %s holds no packages", f.path)
	}
	for _, formula := range entry.Formulae {
		if formula.Name == "" {
			return nil, errs.New(errs.ErrCodeCacheCorrupt, "cache %s has a formula without a name", f.path)
		}
	}
	for _, cask := range entry.Casks {
		if cask.Name == "" {
			return nil, errs.New(errs.ErrCodeCacheCorrupt, "cache %s has a cask without a name", f.path)
		}
	}

	return &entry, nil
}

// Write replaces the cache file with entry.
func (f *File) Write(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
