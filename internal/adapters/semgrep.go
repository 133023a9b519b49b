package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/steveyegge/lintrun/internal/types"
)

type semgrepPosition struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// semgrepResult is one entry of the "results" array of `semgrep --json`.
type semgrepResult struct {
	CheckID string          `json:"check_id"`
	Path    string          `json:"path"`
	Start   semgrepPosition `json:"start"`
	End     semgrepPosition `json:"end"`
	Extra   struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"extra"`
}

// Semgrep parses semgrep's JSON output.
type Semgrep struct {
	base
}

// NewSemgrep creates the semgrep variant.
func NewSemgrep(desc *types.ToolDescriptor) Adapter {
	return &Semgrep{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *Semgrep) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := streamArray(raw, "results", rec, func(element json.RawMessage) ([]types.Finding, error) {
		var r semgrepResult
		if err := json.Unmarshal(element, &r); err != nil {
			return nil, fmt.Errorf("malformed result: %w", err)
		}
		if r.Path == "" || r.CheckID == "" {
			return nil, fmt.Errorf("result without path or check_id")
		}
		f := a.finding()
		f.RuleID = r.CheckID
		f.NativeSeverity = r.Extra.Severity
		f.Path = r.Path
		f.StartLine, f.StartCol = r.Start.Line, r.Start.Col
		f.EndLine, f.EndCol = r.End.Line, r.End.Col
		f.Message = r.Extra.Message
		return []types.Finding{f.WithPayload(element)}, nil
	})
	return findings, rec.err()
}
