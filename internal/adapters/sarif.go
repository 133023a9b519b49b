package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/steveyegge/lintrun/internal/types"
)

// SARIF parses SARIF 2.1.0 reports from any tool that emits them (trivy,
// semgrep --sarif, lizard's own converter).
type SARIF struct {
	base
}

// NewSARIF creates the sarif variant.
func NewSARIF(desc *types.ToolDescriptor) Adapter {
	return &SARIF{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *SARIF) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	if !gjson.ValidBytes(raw) {
		// gjson still walks the intact prefix of a damaged document
		rec.stop(syntaxOffset(raw), "invalid SARIF document")
	}

	var findings []types.Finding
	runs := gjson.GetBytes(raw, "runs")
	if !runs.IsArray() {
		if rec.offset < 0 {
			rec.stop(-1, "SARIF document has no runs")
		}
		return nil, rec.err()
	}
	runs.ForEach(func(_, run gjson.Result) bool {
		run.Get("results").ForEach(func(_, result gjson.Result) bool {
			if rec.offset >= 0 && !intact(result, rec.offset) {
				// Cut off by the damage; the ParseError accounts for it
				return true
			}
			f, err := a.parseResult(result)
			if err != nil {
				rec.skip(err.Error())
				return true
			}
			findings = append(findings, f)
			rec.recovered++
			return true
		})
		return true
	})
	return findings, rec.err()
}

func (a *SARIF) parseResult(result gjson.Result) (types.Finding, error) {
	if !result.IsObject() {
		return types.Finding{}, fmt.Errorf("result is not an object")
	}
	loc := result.Get("locations.0.physicalLocation")
	uri := loc.Get("artifactLocation.uri").String()
	if uri == "" {
		return types.Finding{}, fmt.Errorf("result without location")
	}

	f := a.finding()
	f.RuleID = result.Get("ruleId").String()
	if f.RuleID == "" {
		f.RuleID = result.Get("rule.id").String()
	}
	// SARIF's default level is warning
	f.NativeSeverity = "warning"
	if level := result.Get("level"); level.Exists() {
		f.NativeSeverity = level.String()
	}
	f.Path = uri
	region := loc.Get("region")
	f.StartLine = int(region.Get("startLine").Int())
	f.StartCol = int(region.Get("startColumn").Int())
	f.EndLine = int(region.Get("endLine").Int())
	f.EndCol = int(region.Get("endColumn").Int())
	f.Message = strings.TrimSpace(result.Get("message.text").String())
	return f.WithPayload([]byte(result.Raw)), nil
}

// intact reports whether a result lies wholly before the first syntax
// error of its document.
func intact(result gjson.Result, offset int64) bool {
	return int64(result.Index+len(result.Raw)) <= offset && gjson.Valid(result.Raw)
}

// syntaxOffset locates the first syntax error in raw.
func syntaxOffset(raw []byte) int64 {
	var v any
	err := json.Unmarshal(raw, &v)
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return syntax.Offset
	}
	return int64(len(raw))
}
