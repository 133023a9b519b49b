package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/sjson"

	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/types"
)

const sarifSkeleton = `{"$schema":"https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json","version":"2.1.0","runs":[]}`

// sarifLevel maps canonical severities onto SARIF result levels.
func sarifLevel(s types.Severity) string {
	switch s {
	case types.SeverityError:
		return "error"
	case types.SeverityWarning:
		return "warning"
	case types.SeverityInfo:
		return "note"
	default:
		return "none"
	}
}

// BuildSARIF merges the report into one SARIF 2.1.0 log with a run per
// tool. Tools that ran without findings still get a run, so consumers can
// tell "clean" from "not run".
func BuildSARIF(r *analysis.Report) ([]byte, error) {
	byTool := make(map[string][]types.Finding)
	for _, f := range r.Findings {
		byTool[f.ToolID] = append(byTool[f.ToolID], f)
	}
	outcomes := make(map[string][]analysis.Outcome)
	for _, o := range r.Outcomes {
		outcomes[o.ToolID] = append(outcomes[o.ToolID], o)
	}

	tools := make([]string, 0, len(outcomes))
	for id := range outcomes {
		tools = append(tools, id)
	}
	for id := range byTool {
		if _, ok := outcomes[id]; !ok {
			tools = append(tools, id)
		}
	}
	sort.Strings(tools)

	doc := sarifSkeleton
	for _, id := range tools {
		run, err := sarifRun(id, byTool[id], outcomes[id])
		if err != nil {
			return nil, fmt.Errorf("building SARIF run for %s: %w", id, err)
		}
		if doc, err = sjson.SetRaw(doc, "runs.-1", run); err != nil {
			return nil, fmt.Errorf("building SARIF log: %w", err)
		}
	}
	return []byte(doc), nil
}

func sarifRun(toolID string, findings []types.Finding, outcomes []analysis.Outcome) (string, error) {
	run := `{"tool":{"driver":{"rules":[]}},"results":[],"invocations":[]}`
	var err error
	set := func(path string, value any) {
		if err == nil {
			run, err = sjson.Set(run, path, value)
		}
	}

	set("tool.driver.name", toolID)

	rules := make(map[string]bool)
	for _, f := range findings {
		if f.RuleID != "" {
			rules[f.RuleID] = true
		}
	}
	ruleIDs := make([]string, 0, len(rules))
	for id := range rules {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	for _, id := range ruleIDs {
		set("tool.driver.rules.-1", map[string]string{"id": id})
	}

	for _, f := range findings {
		result, rerr := sarifResult(f)
		if rerr != nil {
			return "", rerr
		}
		if err == nil {
			run, err = sjson.SetRaw(run, "results.-1", result)
		}
	}

	for _, o := range outcomes {
		inv := map[string]any{
			"executionSuccessful": !o.Failed() && o.Status != types.StatusTimedOut && o.Status != types.StatusCancelled,
			"exitCode":            o.ExitStatus,
		}
		if o.Command != "" {
			inv["commandLine"] = o.Command
		}
		if o.Error != "" {
			inv["toolExecutionNotifications"] = []map[string]any{
				{"level": "error", "message": map[string]string{"text": o.Error}},
			}
		}
		set("invocations.-1", inv)
	}
	return run, err
}

func sarifResult(f types.Finding) (string, error) {
	result := `{}`
	var err error
	set := func(path string, value any) {
		if err == nil {
			result, err = sjson.Set(result, path, value)
		}
	}

	set("ruleId", f.RuleID)
	set("level", sarifLevel(f.Severity))
	set("message.text", f.Message)
	region := map[string]int{}
	if f.StartLine > 0 {
		region["startLine"] = f.StartLine
	}
	if f.StartCol > 0 {
		region["startColumn"] = f.StartCol
	}
	if f.EndLine > 0 {
		region["endLine"] = f.EndLine
	}
	if f.EndCol > 0 {
		region["endColumn"] = f.EndCol
	}
	physical := map[string]any{"artifactLocation": map[string]string{"uri": f.Path}}
	if len(region) > 0 {
		physical["region"] = region
	}
	set("locations", []map[string]any{{"physicalLocation": physical}})
	if f.NativeSeverity != "" {
		set("properties.nativeSeverity", f.NativeSeverity)
	}
	if f.Note != "" {
		set("properties.note", f.Note)
	}
	return result, err
}

// WriteSARIF writes the merged SARIF log.
func WriteSARIF(w io.Writer, r *analysis.Report) error {
	data, err := BuildSARIF(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write SARIF: %w", err)
	}
	return nil
}
