package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRootMarkers identify the project root when walking up from a target.
var DefaultRootMarkers = []string{".lintrun.yaml", ".git", ".hg"}

// FindProjectRoot returns the nearest ancestor of start (inclusive) that
// contains one of the markers. found is false when the walk reached the
// filesystem boundary without a match; root is then the boundary itself.
func FindProjectRoot(start string, markers []string) (root string, found bool, err error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", false, fmt.Errorf("resolving %s: %w", start, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", abs, err)
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	if len(markers) == 0 {
		markers = DefaultRootMarkers
	}

	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir, false, nil
		}
		dir = parent
	}
}
