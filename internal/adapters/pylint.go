package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/steveyegge/lintrun/internal/types"
)

// pylintMessage is one entry of `pylint --output-format=json` output.
type pylintMessage struct {
	Type      string `json:"type"`
	Module    string `json:"module"`
	Obj       string `json:"obj"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   *int   `json:"endLine"`
	EndColumn *int   `json:"endColumn"`
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

// Pylint parses pylint's JSON reporter output. Rule IDs use the symbolic
// name (unused-import) and fall back to the message ID (W0611).
type Pylint struct {
	base
}

// NewPylint creates the pylint variant.
func NewPylint(desc *types.ToolDescriptor) Adapter {
	return &Pylint{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *Pylint) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := streamArray(raw, "", rec, func(element json.RawMessage) ([]types.Finding, error) {
		var m pylintMessage
		if err := json.Unmarshal(element, &m); err != nil {
			return nil, fmt.Errorf("malformed message: %w", err)
		}
		if m.Path == "" {
			return nil, fmt.Errorf("message %s without path", m.MessageID)
		}
		f := a.finding()
		f.RuleID = m.Symbol
		if f.RuleID == "" {
			f.RuleID = m.MessageID
		}
		f.NativeSeverity = m.Type
		f.Path = m.Path
		f.StartLine = m.Line
		// pylint columns are 0-based
		f.StartCol = m.Column + 1
		if m.EndLine != nil {
			f.EndLine = *m.EndLine
		}
		if m.EndColumn != nil {
			f.EndCol = *m.EndColumn + 1
		}
		f.Message = m.Message
		return []types.Finding{f.WithPayload(element)}, nil
	})
	return findings, rec.err()
}
