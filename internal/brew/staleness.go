package brew

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// KegDirs returns the directories under prefix that hold installed
// formulae and casks.
func KegDirs(prefix string) []string {
	return []string{
		filepath.Join(prefix, "Cellar"),
		filepath.Join(prefix, "Caskroom"),
	}
}

// LocalPrefix returns the Homebrew prefix without running brew:
// $HOMEBREW_PREFIX when set, otherwise two levels above the brew executable
// (/opt/homebrew/bin/brew gives /opt/homebrew).
func LocalPrefix(bin string) (string, error) {
	if prefix := os.Getenv("HOMEBREW_PREFIX"); prefix != "" {
		return prefix, nil
	}
	if bin == "" {
		bin = "brew"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("failed to locate %s: %w", bin, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Dir(filepath.Dir(abs)), nil
}

// ChangedSince reports whether a package was installed or removed after t.
// Adding or deleting a keg updates the modification time of Cellar or
// Caskroom. Missing directories are skipped and errors degrade to false.
// Upgrades that only add a version inside an existing keg are not seen.
func ChangedSince(dirs []string, t time.Time) bool {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		if info.ModTime().After(t) {
			return true
		}
	}
	return false
}
