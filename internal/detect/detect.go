// Package detect finds the languages present under a set of targets, for
// picking analyzers when a run names neither tools nor a language.
package detect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// extensions maps file extensions, and extensionless file names, to the
// language IDs used by tool descriptors.
var extensions = map[string]string{
	".py":        "python",
	".pyi":       "python",
	".pyw":       "python",
	".js":        "javascript",
	".jsx":       "javascript",
	".mjs":       "javascript",
	".cjs":       "javascript",
	".ts":        "typescript",
	".tsx":       "typescript",
	".mts":       "typescript",
	".go":        "go",
	".java":      "java",
	".c":         "c",
	".h":         "c",
	".cpp":       "cpp",
	".cc":        "cpp",
	".hh":        "cpp",
	".hpp":       "cpp",
	".cs":        "csharp",
	".rb":        "ruby",
	".rake":      "ruby",
	".php":       "php",
	".kt":        "kotlin",
	".kts":       "kotlin",
	".swift":     "swift",
	".scala":     "scala",
	".rs":        "rust",
	".dart":      "dart",
	".sh":        "shell",
	".bash":      "shell",
	".tf":        "terraform",
	".tfvars":    "terraform",
	"dockerfile": "dockerfile",
}

// SkippedDirs are never descended into.
var SkippedDirs = []string{".git", ".hg", ".svn", "node_modules", "vendor", ".venv", "venv", "__pycache__", ".lintrun"}

// Language returns the language of a file by its name, or "" when unknown.
func Language(path string) string {
	name := strings.ToLower(filepath.Base(path))
	if ext := filepath.Ext(name); ext != "" {
		return extensions[ext]
	}
	return extensions[name]
}

// Languages returns the sorted language IDs of the files under targets.
// Directory targets are walked honoring the .gitignore at their top; file
// targets count as given.
func Languages(targets []string) ([]string, error) {
	found := make(map[string]bool)
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("detecting languages in %s: %w", target, err)
		}
		if !info.IsDir() {
			if lang := Language(target); lang != "" {
				found[lang] = true
			}
			continue
		}
		if err := walk(target, found); err != nil {
			return nil, fmt.Errorf("detecting languages in %s: %w", target, err)
		}
	}

	langs := make([]string, 0, len(found))
	for lang := range found {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

func walk(root string, found map[string]bool) error {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	skipped := make(map[string]bool, len(SkippedDirs))
	for _, d := range SkippedDirs {
		skipped[d] = true
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && skipped[d.Name()] {
			return filepath.SkipDir
		}
		if gi != nil {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if d.IsDir() {
				rel += string(filepath.Separator)
			}
			if gi.MatchesPath(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !d.IsDir() {
			if lang := Language(path); lang != "" {
				found[lang] = true
			}
		}
		return nil
	})
}
