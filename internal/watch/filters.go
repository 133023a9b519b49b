package watch

import (
	"path/filepath"
	"strings"
)

// DefaultIgnoredDirs are never watched: VCS metadata, dependency trees,
// caches, and lintrun's own state directory.
var DefaultIgnoredDirs = []string{
	".git", ".hg", ".svn", ".lintrun",
	"node_modules", "vendor", "__pycache__", ".venv", ".mypy_cache", ".ruff_cache",
}

// DefaultFilters ignores DefaultIgnoredDirs and editor scratch files.
func DefaultFilters() []Filter {
	return []Filter{IgnoreDirs(DefaultIgnoredDirs...), NoEditorFiles}
}

// IgnoreDirs rejects paths having any of names as a path component. Paths
// are relative to the watched target, so a target checked out below a
// directory such as vendor is still watched.
func IgnoreDirs(names ...string) Filter {
	ignored := make(map[string]bool, len(names))
	for _, n := range names {
		ignored[n] = true
	}
	return func(path string) bool {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if ignored[part] {
				return false
			}
		}
		return true
	}
}

// NoEditorFiles rejects swap, backup and lock files written by editors.
func NoEditorFiles(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		base == "4913":
		return false
	}
	return true
}

// Extensions accepts directories and files with one of exts (".py", ".go").
func Extensions(exts ...string) Filter {
	return func(path string) bool {
		ext := filepath.Ext(path)
		if ext == "" {
			return true
		}
		for _, e := range exts {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	}
}
