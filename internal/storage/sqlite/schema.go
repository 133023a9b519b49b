package sqlite

import "github.com/steveyegge/lintrun/internal/storage/migrations"

// schemaMigrations builds the history schema. Times are stored as Unix
// milliseconds; list-valued columns hold JSON arrays.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "runs, outcomes and findings",
		Up: `
-- One row per analysis run
CREATE TABLE runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    project_root TEXT NOT NULL,
    targets TEXT NOT NULL DEFAULT '[]',
    started_at INTEGER NOT NULL,
    completed_at INTEGER NOT NULL,
    input_findings INTEGER NOT NULL DEFAULT 0,
    output_findings INTEGER NOT NULL DEFAULT 0,
    exact_duplicates INTEGER NOT NULL DEFAULT 0,
    equivalent INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_runs_started_at ON runs(started_at);
CREATE INDEX idx_runs_project_root ON runs(project_root);

-- One row per invocation unit, in plan order
CREATE TABLE outcomes (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    tool_id TEXT NOT NULL,
    status TEXT NOT NULL,
    targets TEXT NOT NULL DEFAULT '[]',
    command TEXT NOT NULL DEFAULT '',
    exit_status INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    config_path TEXT NOT NULL DEFAULT '',
    findings INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    diagnostics TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Aggregated findings, in report order
CREATE TABLE findings (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    tool_id TEXT NOT NULL,
    rule_id TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    path TEXT NOT NULL,
    start_line INTEGER NOT NULL DEFAULT 0,
    start_col INTEGER NOT NULL DEFAULT 0,
    end_line INTEGER NOT NULL DEFAULT 0,
    end_col INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT '',
    native_severity TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    raw_payload TEXT,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX idx_findings_path ON findings(path);
CREATE INDEX idx_findings_tool_rule ON findings(tool_id, rule_id);
`,
	},
	{
		Version:     2,
		Description: "run events",
		Up: `
-- Events emitted during runs; kept until their run is pruned
CREATE TABLE run_events (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    type TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    tool_id TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT
);

CREATE INDEX idx_run_events_run ON run_events(run_id, timestamp);
`,
	},
}
