package sqlite

import (
	"context"
	"fmt"
	"time"
)

// PruneOptions selects runs to delete from the history.
type PruneOptions struct {
	// MaxAge deletes runs started before Now-MaxAge; 0 disables age pruning
	MaxAge time.Duration

	// KeepRuns most recent runs survive age pruning
	KeepRuns int

	// MaxRuns caps the number of runs kept; 0 means unlimited
	MaxRuns int

	// Now defaults to time.Now()
	Now time.Time
}

// Prune deletes old runs with their outcomes, findings and events, and
// returns the number of runs deleted. Events of a run that has not been
// saved yet count as orphaned, so prune between runs.
func (s *SQLiteStorage) Prune(ctx context.Context, opts PruneOptions) (int, error) {
	if opts.MaxAge < 0 || opts.KeepRuns < 0 || opts.MaxRuns < 0 {
		return 0, fmt.Errorf("prune options cannot be negative")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	if opts.MaxAge > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM runs
			WHERE started_at < ?
			AND id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
			)
		`, now.Add(-opts.MaxAge).UnixMilli(), opts.KeepRuns)
		if err != nil {
			return 0, fmt.Errorf("failed to delete old runs: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += int(n)
	}

	if opts.MaxRuns > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM runs
			WHERE id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
			)
		`, opts.MaxRuns)
		if err != nil {
			return 0, fmt.Errorf("failed to delete excess runs: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += int(n)
	}

	// run_events has no foreign key
	for _, table := range []string{"outcomes", "findings", "run_events"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE run_id NOT IN (SELECT id FROM runs)`, table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return 0, fmt.Errorf("failed to delete orphaned %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return deleted, nil
}
