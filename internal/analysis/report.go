package analysis

import (
	"time"

	"github.com/steveyegge/lintrun/internal/aggregate"
	"github.com/steveyegge/lintrun/internal/types"
)

// Outcome records what happened to one invocation unit.
type Outcome struct {
	ToolID     string          `json:"tool_id"`
	Targets    []string        `json:"targets"`
	Status     types.RunStatus `json:"status"`
	Command    string          `json:"command,omitempty"`
	ExitStatus int             `json:"exit_status"`
	Duration   time.Duration   `json:"duration"`

	// ConfigPath is the config file the tool ran with, empty for defaults
	ConfigPath string `json:"config_path,omitempty"`

	// Findings is the number of findings the unit contributed before aggregation
	Findings int `json:"findings"`

	// Error describes the invocation-level failure, if any
	Error string `json:"error,omitempty"`

	// Diagnostics describe partial results: skipped config files, parse errors
	// and dropped findings
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Err and Diags keep the typed errors for errors.As checks
	Err   error   `json:"-"`
	Diags []error `json:"-"`
}

// Failed reports whether the unit produced no usable result.
func (o Outcome) Failed() bool {
	switch o.Status {
	case types.StatusFailed, types.StatusConfigError:
		return true
	}
	return false
}

// Report is the result of an analysis run.
type Report struct {
	RunID       string          `json:"run_id"`
	Status      types.RunStatus `json:"status"`
	ProjectRoot string          `json:"project_root"`
	Targets     []string        `json:"targets"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`

	// Findings is the aggregated, ordered finding set
	Findings []types.Finding `json:"findings"`

	// Outcomes holds one entry per invocation unit, in plan order
	Outcomes []Outcome `json:"outcomes"`

	Stats aggregate.Stats `json:"stats"`
}

// Duration returns the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// OutcomesWithStatus returns the outcomes having one of the statuses.
func (r *Report) OutcomesWithStatus(statuses ...types.RunStatus) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// FindingsByTool counts findings per tool.
func (r *Report) FindingsByTool() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[f.ToolID]++
	}
	return counts
}

// CountBySeverity counts findings per severity.
func (r *Report) CountBySeverity() map[types.Severity]int {
	counts := make(map[types.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
