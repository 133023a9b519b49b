package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/storage/sqlite"
	"github.com/steveyegge/lintrun/internal/types"
)

// Storage defines the interface for run history backends
type Storage interface {
	// Runs
	SaveReport(ctx context.Context, r *analysis.Report) error
	LoadReport(ctx context.Context, id string) (*analysis.Report, error)
	GetRun(ctx context.Context, id string) (sqlite.RunSummary, error)
	ListRuns(ctx context.Context, filter sqlite.RunFilter) ([]sqlite.RunSummary, error)
	LoadFindings(ctx context.Context, runID string) ([]types.Finding, error)

	// Events emitted during runs
	StoreEvent(ctx context.Context, event *events.Event) error
	GetRunEvents(ctx context.Context, runID string) ([]*events.Event, error)
	EventSink(ctx context.Context, log logrus.FieldLogger) events.Sink

	// Retention
	Prune(ctx context.Context, opts sqlite.PruneOptions) (int, error)

	// Lifecycle
	Path() string
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".lintrun/history.db" under the project root
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// NewStorage opens the history store. Relative paths are resolved against
// projectRoot; an empty path is discovered.
func NewStorage(ctx context.Context, cfg Config, projectRoot string) (Storage, error) {
	store, err := sqlite.New(ctx, ResolvePath(cfg.Path, projectRoot))
	if err != nil {
		return nil, err
	}
	return store, nil
}

var _ Storage = (*sqlite.SQLiteStorage)(nil)
