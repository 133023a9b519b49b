package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/steveyegge/lintrun/internal/types"
)

// GeneratedConfigDir holds tool configs generated for the project. It is
// consulted after the directory walk finds nothing.
const GeneratedConfigDir = ".lintrun/tools-configs"

// sharedConfigs hold settings for many tools; a tool's ConfigSection is
// looked up only in these.
var sharedConfigs = map[string]bool{
	"pyproject.toml": true,
	"setup.cfg":      true,
	"tox.ini":        true,
	"package.json":   true,
}

func isSharedConfig(path string) bool {
	return sharedConfigs[strings.ToLower(filepath.Base(path))]
}

// Resolver discovers per-tool configuration by walking from each target up
// to the project root. A Resolver caches parsed files per directory and is
// meant to live for a single analysis run, so results depend only on the
// directory tree.
type Resolver struct {
	root string
	log  logrus.FieldLogger

	mu    sync.Mutex
	cache map[levelKey]*levelResult
}

type levelKey struct {
	dir  string
	tool string
}

// levelResult is the outcome of checking one directory for one tool.
type levelResult struct {
	file      *configFile
	malformed *types.ConfigError

	// skipped lists malformed files passed over for the winning file
	skipped []*types.ConfigError
}

// reject records a file of the level that could not be used. The first one
// explains the level when no file wins it.
func (l *levelResult) reject(err *types.ConfigError) {
	if l.malformed == nil {
		l.malformed = err
	}
	l.skipped = append(l.skipped, err)
}

type configFile struct {
	path   string
	values map[string]any
}

// ResolverOption customizes a Resolver
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for resolution diagnostics
func WithLogger(log logrus.FieldLogger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver creates a resolver rooted at projectRoot.
func NewResolver(projectRoot string, opts ...ResolverOption) (*Resolver, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	r := &Resolver{
		root:  abs,
		log:   logrus.StandardLogger(),
		cache: make(map[levelKey]*levelResult),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute project root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve produces the effective configuration of one tool for one target.
// A *types.ConfigError is returned together with a config describing the
// target when the nearest config level holds only malformed files.
func (r *Resolver) Resolve(desc *types.ToolDescriptor, target string) (types.EffectiveConfig, error) {
	cfg := types.EffectiveConfig{ToolID: desc.ID, Target: target}

	dir, err := r.startDir(target)
	if err != nil {
		return cfg, &types.ConfigError{ToolID: desc.ID, Target: target, Path: target, Err: err}
	}

	var found []*configFile
	for {
		level := r.checkLevel(desc, dir)
		cfg.Skipped = appendSkipped(cfg.Skipped, level.skipped, target)
		if level.malformed != nil && level.file == nil {
			err := *level.malformed
			err.Target = target
			return cfg, &err
		}
		if level.file != nil {
			found = append(found, level.file)
			if desc.MergePolicy() == types.MergeReplace {
				break
			}
		}
		if dir == r.root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if len(found) == 0 {
		level := r.checkLevel(desc, filepath.Join(r.root, GeneratedConfigDir))
		if level.malformed != nil && level.file == nil {
			err := *level.malformed
			err.Target = target
			return cfg, &err
		}
		if level.file != nil {
			cfg.Skipped = appendSkipped(cfg.Skipped, level.skipped, target)
			found = append(found, level.file)
		}
	}

	if len(found) == 0 {
		cfg.Defaults = true
		return cfg, nil
	}

	cfg.Path = found[0].path
	for _, f := range found {
		cfg.Sources = append(cfg.Sources, f.path)
	}

	// Merge farthest first so the nearest file wins per key
	var merged map[string]any
	for i := len(found) - 1; i >= 0; i-- {
		if found[i].values == nil {
			continue
		}
		if merged == nil {
			merged = cloneValues(found[i].values)
			continue
		}
		merged = deepMerge(merged, found[i].values)
	}
	cfg.Values = merged

	r.log.WithFields(logrus.Fields{
		"tool":    desc.ID,
		"target":  target,
		"config":  cfg.Path,
		"sources": len(cfg.Sources),
	}).Debug("resolved tool configuration")
	return cfg, nil
}

// appendSkipped copies a level's skipped files, attributed to target.
func appendSkipped(dst, skipped []*types.ConfigError, target string) []*types.ConfigError {
	for _, s := range skipped {
		err := *s
		err.Target = target
		dst = append(dst, &err)
	}
	return dst
}

// startDir returns the directory the upward search begins in.
func (r *Resolver) startDir(target string) (string, error) {
	abs := target
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, target)
	}
	abs = filepath.Clean(abs)
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat target: %w", err)
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}

// checkLevel tries the tool's config filenames in priority order in one
// directory. The first readable, parseable file wins the level.
func (r *Resolver) checkLevel(desc *types.ToolDescriptor, dir string) *levelResult {
	key := levelKey{dir: dir, tool: desc.ID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	result := &levelResult{}
	for _, name := range desc.ConfigFilenames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.reject(&types.ConfigError{ToolID: desc.ID, Path: path, Err: err})
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			result.reject(&types.ConfigError{ToolID: desc.ID, Path: path, Err: fmt.Errorf("reading config: %w", err)})
			continue
		}
		values, err := ParseConfig(path, data)
		if err != nil {
			result.reject(&types.ConfigError{ToolID: desc.ID, Path: path, Err: err})
			continue
		}
		if desc.ConfigSection != "" && isSharedConfig(path) {
			section, ok := lookupSection(values, desc.ConfigSection)
			if !ok {
				// A shared file without our section is not a config for this tool
				continue
			}
			values = section
		}

		result.file = &configFile{path: path, values: values}
		break
	}
	if result.file == nil {
		result.skipped = nil
	}

	r.cache[key] = result
	return result
}
