// Package watch re-runs analysis when files under the targets change.
// Bursts of filesystem events are debounced into one batch of changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/logging"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
	OpRenamed
)

// String returns the string representation of the Op
func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Change is the last change seen for one path within a debounce window.
type Change struct {
	Path string
	Op   Op
}

// Filter reports whether a path should be watched. It receives the path
// relative to the watched target, or the base name for a file target.
type Filter func(path string) bool

// Handler is called with each debounced batch. Calls never overlap;
// changes arriving during a call are batched for the next one.
type Handler func(ctx context.Context, changes []Change) error

// Config holds watcher configuration
type Config struct {
	Debounce time.Duration

	// Filters must all accept a path for it to be watched; nil means DefaultFilters
	Filters []Filter

	// Exclude lists files and directories whose changes never trigger a
	// batch, such as the report being written. A SQLite database listed here
	// also excludes its -wal, -shm and -journal companions.
	Exclude []string

	Logger logrus.FieldLogger
	Events events.Sink
}

// Watcher watches target trees for changes.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	filters  []Filter
	exclude  []string
	log      logrus.FieldLogger
	events   events.Sink

	// files holds targets that are single files; their directory is watched
	files map[string]bool
	dirs  []string
}

// New creates a watcher. Call Close when done.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("debounce cannot be negative (got %v)", cfg.Debounce)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	exclude := make([]string, 0, len(cfg.Exclude))
	for _, p := range cfg.Exclude {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		exclude = append(exclude, abs)
	}
	w := &Watcher{
		fs:       fsw,
		debounce: cfg.Debounce,
		filters:  cfg.Filters,
		exclude:  exclude,
		log:      cfg.Logger,
		events:   cfg.Events,
		files:    make(map[string]bool),
	}
	if w.debounce == 0 {
		w.debounce = DefaultDebounce
	}
	if w.filters == nil {
		w.filters = DefaultFilters()
	}
	if w.log == nil {
		w.log = logging.Discard()
	}
	if w.events == nil {
		w.events = events.Discard
	}
	return w, nil
}

// Add watches a target: a directory tree, or a single file.
func (w *Watcher) Add(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", target, err)
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.fs.Add(filepath.Dir(abs))
	}
	w.dirs = append(w.dirs, abs)
	return w.addTree(abs)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between the event and the walk
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !w.accept(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers debounced batches of changes to handler until ctx is done.
// Handler errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	pending := make(map[string]Change)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			change, keep := w.translate(ev)
			if !keep {
				continue
			}
			if change.Op == OpCreated {
				if info, err := os.Stat(change.Path); err == nil && info.IsDir() {
					if err := w.addTree(change.Path); err != nil {
						w.log.WithError(err).WithField("path", change.Path).Warn("cannot watch new directory")
					}
				}
			}
			pending[change.Path] = change
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("file watcher error")

		case <-fire:
			fire = nil
			changes := drain(pending)
			w.emitTriggered(changes)
			if err := handler(ctx, changes); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.WithError(err).Error("watch handler failed")
			}
		}
	}
}

// translate maps an fsnotify event to a change, reporting whether it is
// relevant to the watched targets.
func (w *Watcher) translate(ev fsnotify.Event) (Change, bool) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreated
	case ev.Has(fsnotify.Write):
		op = OpModified
	case ev.Has(fsnotify.Remove):
		op = OpRemoved
	case ev.Has(fsnotify.Rename):
		op = OpRenamed
	default:
		// chmod only
		return Change{}, false
	}
	path := filepath.Clean(ev.Name)
	if !w.inTargets(path) || !w.accept(path) {
		return Change{}, false
	}
	return Change{Path: path, Op: op}, true
}

func (w *Watcher) inTargets(path string) bool {
	if w.files[path] {
		return true
	}
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) accept(path string) bool {
	if w.excluded(path) {
		return false
	}
	rel := w.relative(path)
	for _, f := range w.filters {
		if !f(rel) {
			return false
		}
	}
	return true
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.exclude {
		switch {
		case path == ex,
			strings.HasPrefix(path, ex+string(filepath.Separator)),
			path == ex+"-wal", path == ex+"-shm", path == ex+"-journal":
			return true
		}
	}
	return false
}

// relative returns path relative to the target that contains it, so that
// directories above the targets never match a filter.
func (w *Watcher) relative(path string) string {
	if w.files[path] {
		return filepath.Base(path)
	}
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			if rel, err := filepath.Rel(dir, path); err == nil {
				return rel
			}
		}
	}
	return filepath.Base(path)
}

func (w *Watcher) emitTriggered(changes []Change) {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	w.log.WithField("changes", len(changes)).Info("change detected, re-running analysis")
	event, err := events.NewWatchTriggeredEvent(
		fmt.Sprintf("%d change(s) detected", len(changes)),
		events.WatchTriggeredData{Paths: paths, Changes: len(changes)})
	if err == nil {
		w.events.Emit(event)
	}
}

// drain returns the pending changes ordered by path and empties the map.
func drain(pending map[string]Change) []Change {
	changes := make([]Change, 0, len(pending))
	for _, c := range pending {
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	clear(pending)
	return changes
}
