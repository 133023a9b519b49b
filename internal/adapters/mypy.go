package adapters

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/steveyegge/lintrun/internal/types"
)

// mypyLine matches `path:line[:col[:endline:endcol]]: severity: message  [code]`
// as printed with --show-column-numbers and --show-error-end.
var mypyLine = regexp.MustCompile(
	`^(.+?):(\d+):(?:(\d+):)?(?:(\d+):(\d+):)? (error|warning|note): (.*?)(?:\s+\[([\w-]+)\])?$`)

// mypySummary matches summary lines printed unless --no-error-summary is set.
var mypySummary = regexp.MustCompile(`^(Success: |Found \d+ errors? in \d+ files?)`)

// Mypy parses mypy's plain-text output.
type Mypy struct {
	base
}

// NewMypy creates the mypy variant.
func NewMypy(desc *types.ToolDescriptor) Adapter {
	return &Mypy{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *Mypy) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := scanLines(raw, rec, mypySummary.MatchString, a.parseLine)
	return findings, rec.err()
}

func (a *Mypy) parseLine(line string) (types.Finding, bool) {
	m := mypyLine.FindStringSubmatch(line)
	if m == nil {
		return types.Finding{}, false
	}
	f := a.finding()
	f.Path = m[1]
	f.StartLine = atoi(m[2])
	f.StartCol = atoi(m[3])
	f.EndLine = atoi(m[4])
	f.EndCol = atoi(m[5])
	f.NativeSeverity = m[6]
	f.Message = m[7]
	f.RuleID = m[8]
	if f.RuleID == "" {
		if m[6] == "note" {
			f.RuleID = "note"
		} else {
			f.RuleID = "misc"
		}
	}
	payload, _ := json.Marshal(map[string]string{"line": line})
	return f.WithPayload(payload), true
}

// atoi converts an optional regexp group; absent groups are zero.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
