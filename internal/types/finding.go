package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the canonical severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// IsValid checks if the severity value is one of the canonical values
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo, SeverityHint:
		return true
	}
	return false
}

// Rank orders severities from most (0) to least severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	case SeverityHint:
		return 3
	default:
		return 4
	}
}

// ParseSeverity converts a canonical severity name, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// UnmappedSeverityNote is stamped on findings whose native severity had no
// entry in the tool's severity map.
const UnmappedSeverityNote = "unmapped-severity"

// Finding is a single normalized issue report.
//
// Findings are values: adapters produce them, the normalizer returns
// rewritten copies, and nothing mutates a Finding after it leaves a stage.
type Finding struct {
	ToolID    string   `json:"tool_id"`
	RuleID    string   `json:"rule_id"`
	Severity  Severity `json:"severity"`
	Path      string   `json:"path"`
	StartLine int      `json:"start_line"`
	StartCol  int      `json:"start_col"`
	EndLine   int      `json:"end_line"`
	EndCol    int      `json:"end_col"`
	Message   string   `json:"message"`

	// NativeSeverity is the severity string exactly as the tool reported it
	NativeSeverity string `json:"native_severity,omitempty"`

	// Note carries provenance flags such as UnmappedSeverityNote
	Note string `json:"note,omitempty"`

	// RawPayload is the tool-specific record the finding was parsed from
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// Validate checks the invariants every canonical finding must satisfy.
func (f Finding) Validate() error {
	if f.ToolID == "" {
		return fmt.Errorf("tool_id is required")
	}
	if f.Path == "" {
		return fmt.Errorf("path is required (tool %s, rule %s)", f.ToolID, f.RuleID)
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity %q (tool %s, rule %s)", f.Severity, f.ToolID, f.RuleID)
	}
	if f.StartLine < 0 || f.EndLine < 0 || f.StartCol < 0 || f.EndCol < 0 {
		return fmt.Errorf("negative position in %s:%d (tool %s)", f.Path, f.StartLine, f.ToolID)
	}
	return nil
}

// LastLine returns the final line covered by the finding. Findings with no
// end line cover only their start line.
func (f Finding) LastLine() int {
	if f.EndLine < f.StartLine {
		return f.StartLine
	}
	return f.EndLine
}

// Overlaps reports whether two findings on the same path share at least one line.
func (f Finding) Overlaps(o Finding) bool {
	if f.Path != o.Path {
		return false
	}
	return f.StartLine <= o.LastLine() && o.StartLine <= f.LastLine()
}

// WithPayload returns a copy of the finding holding its own copy of raw.
func (f Finding) WithPayload(raw []byte) Finding {
	if len(raw) == 0 {
		f.RawPayload = nil
		return f
	}
	f.RawPayload = append(json.RawMessage(nil), raw...)
	return f
}

// Location formats the finding's position as path:line:col.
func (f Finding) Location() string {
	if f.StartCol > 0 {
		return fmt.Sprintf("%s:%d:%d", f.Path, f.StartLine, f.StartCol)
	}
	return fmt.Sprintf("%s:%d", f.Path, f.StartLine)
}

// Compare orders findings by (path, start line, start column, tool, rule),
// breaking remaining ties on end position and message so that the order is
// a total function of finding content.
func Compare(a, b Finding) int {
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	if c := cmpInt(a.StartLine, b.StartLine); c != 0 {
		return c
	}
	if c := cmpInt(a.StartCol, b.StartCol); c != 0 {
		return c
	}
	if c := strings.Compare(a.ToolID, b.ToolID); c != 0 {
		return c
	}
	if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
		return c
	}
	if c := cmpInt(a.EndLine, b.EndLine); c != 0 {
		return c
	}
	if c := cmpInt(a.EndCol, b.EndCol); c != 0 {
		return c
	}
	if c := strings.Compare(a.Message, b.Message); c != 0 {
		return c
	}
	return strings.Compare(string(a.Severity), string(b.Severity))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
