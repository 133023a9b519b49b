package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/steveyegge/lintrun/internal/types"
)

type revivePosition struct {
	Filename string `json:"Filename"`
	Line     int    `json:"Line"`
	Column   int    `json:"Column"`
}

// reviveFailure is one entry of `revive -formatter json` output.
type reviveFailure struct {
	Severity   string  `json:"Severity"`
	Failure    string  `json:"Failure"`
	RuleName   string  `json:"RuleName"`
	Category   string  `json:"Category"`
	Confidence float64 `json:"Confidence"`
	Position   struct {
		Start revivePosition `json:"Start"`
		End   revivePosition `json:"End"`
	} `json:"Position"`
}

// Revive parses revive's JSON formatter output.
type Revive struct {
	base
}

// NewRevive creates the revive variant.
func NewRevive(desc *types.ToolDescriptor) Adapter {
	return &Revive{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *Revive) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := streamArray(raw, "", rec, func(element json.RawMessage) ([]types.Finding, error) {
		var r reviveFailure
		if err := json.Unmarshal(element, &r); err != nil {
			return nil, fmt.Errorf("malformed failure: %w", err)
		}
		if r.Position.Start.Filename == "" {
			return nil, fmt.Errorf("failure %s without filename", r.RuleName)
		}
		f := a.finding()
		f.RuleID = r.RuleName
		f.NativeSeverity = r.Severity
		f.Path = r.Position.Start.Filename
		f.StartLine, f.StartCol = r.Position.Start.Line, r.Position.Start.Column
		f.EndLine, f.EndCol = r.Position.End.Line, r.Position.End.Column
		f.Message = r.Failure
		return []types.Finding{f.WithPayload(element)}, nil
	})
	return findings, rec.err()
}
