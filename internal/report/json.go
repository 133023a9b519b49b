// Package report encodes analysis reports for downstream consumers:
// canonical finding records as JSON, a merged SARIF log, and a terminal
// summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/steveyegge/lintrun/internal/aggregate"
	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/types"
)

// FormatVersion is stamped on JSON documents. Readers must ignore fields
// they do not know.
const FormatVersion = 1

// Document is the JSON form of a report.
type Document struct {
	Version     int             `json:"version"`
	RunID       string          `json:"run_id"`
	Status      types.RunStatus `json:"status"`
	ProjectRoot string          `json:"project_root"`
	Targets     []string        `json:"targets"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMs  int64           `json:"duration_ms"`
	Findings    []types.Finding `json:"findings"`
	Outcomes    []OutcomeRecord `json:"outcomes"`
	Stats       aggregate.Stats `json:"stats"`
	Summary     map[string]int  `json:"summary"`
}

// OutcomeRecord is the JSON form of one invocation unit's outcome.
type OutcomeRecord struct {
	ToolID      string          `json:"tool_id"`
	Targets     []string        `json:"targets"`
	Status      types.RunStatus `json:"status"`
	Command     string          `json:"command,omitempty"`
	ExitStatus  int             `json:"exit_status"`
	DurationMs  int64           `json:"duration_ms"`
	ConfigPath  string          `json:"config_path,omitempty"`
	Findings    int             `json:"findings"`
	Error       string          `json:"error,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// NewDocument converts a report into its JSON form.
func NewDocument(r *analysis.Report) Document {
	doc := Document{
		Version:     FormatVersion,
		RunID:       r.RunID,
		Status:      r.Status,
		ProjectRoot: r.ProjectRoot,
		Targets:     r.Targets,
		StartedAt:   r.StartedAt,
		DurationMs:  r.Duration().Milliseconds(),
		Findings:    r.Findings,
		Outcomes:    make([]OutcomeRecord, len(r.Outcomes)),
		Stats:       r.Stats,
		Summary:     make(map[string]int),
	}
	if doc.Findings == nil {
		doc.Findings = []types.Finding{}
	}
	for i, o := range r.Outcomes {
		doc.Outcomes[i] = OutcomeRecord{
			ToolID:      o.ToolID,
			Targets:     o.Targets,
			Status:      o.Status,
			Command:     o.Command,
			ExitStatus:  o.ExitStatus,
			DurationMs:  o.Duration.Milliseconds(),
			ConfigPath:  o.ConfigPath,
			Findings:    o.Findings,
			Error:       o.Error,
			Diagnostics: o.Diagnostics,
		}
	}
	for sev, n := range r.CountBySeverity() {
		doc.Summary[string(sev)] = n
	}
	return doc
}

// WriteJSON writes the full report document.
func WriteJSON(w io.Writer, r *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(r)); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}

// WriteFindings writes findings as a JSON array of canonical records.
func WriteFindings(w io.Writer, findings []types.Finding) error {
	if findings == nil {
		findings = []types.Finding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(findings); err != nil {
		return fmt.Errorf("failed to write findings: %w", err)
	}
	return nil
}

// ReadFindings reads a JSON array of canonical records, ignoring unknown
// fields. Every record must be a valid finding.
func ReadFindings(r io.Reader) ([]types.Finding, error) {
	var findings []types.Finding
	if err := json.NewDecoder(r).Decode(&findings); err != nil {
		return nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	for i, f := range findings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
	}
	return findings, nil
}
