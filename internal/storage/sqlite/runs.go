package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/types"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string
	Status      types.RunStatus
	ProjectRoot string
	Targets     []string
	StartedAt   time.Time
	CompletedAt time.Time
	Findings    int
	Suppressed  int
}

// Duration returns the wall-clock time of the run.
func (r RunSummary) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunFilter selects runs from the history. Zero fields match everything.
type RunFilter struct {
	ProjectRoot string
	Status      types.RunStatus
	Since       time.Time
	Limit       int
}

// SaveReport records a completed run with its outcomes and findings.
func (s *SQLiteStorage) SaveReport(ctx context.Context, r *analysis.Report) error {
	if r.RunID == "" {
		return fmt.Errorf("report has no run ID")
	}
	targets, err := json.Marshal(nonNil(r.Targets))
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, status, project_root, targets, started_at, completed_at,
			input_findings, output_findings, exact_duplicates, equivalent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID, string(r.Status), r.ProjectRoot, string(targets),
		r.StartedAt.UnixMilli(), r.CompletedAt.UnixMilli(),
		r.Stats.Input, r.Stats.Output, r.Stats.ExactDuplicates, r.Stats.Equivalent,
	)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", r.RunID, err)
	}

	for i, o := range r.Outcomes {
		otargets, err := json.Marshal(nonNil(o.Targets))
		if err != nil {
			return fmt.Errorf("failed to marshal outcome targets: %w", err)
		}
		diags, err := json.Marshal(nonNil(o.Diagnostics))
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostics: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (
				run_id, seq, tool_id, status, targets, command, exit_status,
				duration_ms, config_path, findings, error, diagnostics
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID, i, o.ToolID, string(o.Status), string(otargets), o.Command, o.ExitStatus,
			o.Duration.Milliseconds(), o.ConfigPath, o.Findings, o.Error, string(diags),
		)
		if err != nil {
			return fmt.Errorf("failed to store outcome %d of run %s (tool=%s): %w", i, r.RunID, o.ToolID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (
			run_id, seq, tool_id, rule_id, severity, path, start_line, start_col,
			end_line, end_col, message, native_severity, note, raw_payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range r.Findings {
		var raw sql.NullString
		if len(f.RawPayload) > 0 {
			raw = sql.NullString{String: string(f.RawPayload), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			r.RunID, i, f.ToolID, f.RuleID, string(f.Severity), f.Path, f.StartLine, f.StartCol,
			f.EndLine, f.EndCol, f.Message, f.NativeSeverity, f.Note, raw,
		)
		if err != nil {
			return fmt.Errorf("failed to store finding %d of run %s: %w", i, r.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns runs matching the filter, most recent first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `
		SELECT id, status, project_root, targets, started_at, completed_at,
		       output_findings, exact_duplicates + equivalent
		FROM runs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.ProjectRoot != "" {
		query += " AND project_root = ?"
		args = append(args, filter.ProjectRoot)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UnixMilli())
	}

	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run's summary.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, project_root, targets, started_at, completed_at,
		       output_findings, exact_duplicates + equivalent
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LoadReport reconstructs a stored run. Typed errors are not persisted;
// outcomes carry their error and diagnostic text only.
func (s *SQLiteStorage) LoadReport(ctx context.Context, id string) (*analysis.Report, error) {
	var (
		r                  analysis.Report
		status, targets    string
		started, completed int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, project_root, targets, started_at, completed_at,
		       input_findings, output_findings, exact_duplicates, equivalent
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.RunID, &status, &r.ProjectRoot, &targets, &started, &completed,
		&r.Stats.Input, &r.Stats.Output, &r.Stats.ExactDuplicates, &r.Stats.Equivalent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	r.Status = types.RunStatus(status)
	r.StartedAt = time.UnixMilli(started)
	r.CompletedAt = time.UnixMilli(completed)
	if err := json.Unmarshal([]byte(targets), &r.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets of run %s: %w", id, err)
	}

	if r.Outcomes, err = s.loadOutcomes(ctx, id); err != nil {
		return nil, err
	}
	if r.Findings, err = s.LoadFindings(ctx, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStorage) loadOutcomes(ctx context.Context, runID string) ([]analysis.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_id, status, targets, command, exit_status, duration_ms,
		       config_path, findings, error, diagnostics
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes of run %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []analysis.Outcome
	for rows.Next() {
		var (
			o                      analysis.Outcome
			status, targets, diags string
			durationMs             int64
		)
		if err := rows.Scan(&o.ToolID, &status, &targets, &o.Command, &o.ExitStatus, &durationMs,
			&o.ConfigPath, &o.Findings, &o.Error, &diags); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = types.RunStatus(status)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(targets), &o.Targets); err != nil {
			return nil, fmt.Errorf("failed to decode outcome targets: %w", err)
		}
		if err := json.Unmarshal([]byte(diags), &o.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
		}
		if len(o.Diagnostics) == 0 {
			o.Diagnostics = nil
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// LoadFindings returns a stored run's aggregated findings in report order.
func (s *SQLiteStorage) LoadFindings(ctx context.Context, runID string) ([]types.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_id, rule_id, severity, path, start_line, start_col,
		       end_line, end_col, message, native_severity, note, raw_payload
		FROM findings
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings of run %s: %w", runID, err)
	}
	defer rows.Close()

	var findings []types.Finding
	for rows.Next() {
		var (
			f        types.Finding
			severity string
			raw      sql.NullString
		)
		if err := rows.Scan(&f.ToolID, &f.RuleID, &severity, &f.Path, &f.StartLine, &f.StartCol,
			&f.EndLine, &f.EndCol, &f.Message, &f.NativeSeverity, &f.Note, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = types.Severity(severity)
		if raw.Valid {
			f = f.WithPayload([]byte(raw.String))
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}
	return findings, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (RunSummary, error) {
	var (
		run                RunSummary
		status, targets    string
		started, completed int64
	)
	if err := sc.Scan(&run.ID, &status, &run.ProjectRoot, &targets, &started, &completed,
		&run.Findings, &run.Suppressed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = types.RunStatus(status)
	run.StartedAt = time.UnixMilli(started)
	run.CompletedAt = time.UnixMilli(completed)
	if err := json.Unmarshal([]byte(targets), &run.Targets); err != nil {
		return run, fmt.Errorf("failed to decode targets of run %s: %w", run.ID, err)
	}
	return run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
