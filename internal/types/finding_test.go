package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_IsValidAndRank(t *testing.T) {
	tests := []struct {
		sev   Severity
		valid bool
		rank  int
	}{
		{SeverityError, true, 0},
		{SeverityWarning, true, 1},
		{SeverityInfo, true, 2},
		{SeverityHint, true, 3},
		{Severity("fatal"), false, 4},
		{Severity(""), false, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.sev.IsValid())
			assert.Equal(t, tt.rank, tt.sev.Rank())
		})
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" Warning ")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)

	_, err = ParseSeverity("critical")
	assert.Error(t, err)
}

func TestFinding_Validate(t *testing.T) {
	valid := Finding{ToolID: "pylint", RuleID: "C0114", Severity: SeverityInfo, Path: "a.py", StartLine: 1}
	require.NoError(t, valid.Validate())

	noTool := valid
	noTool.ToolID = ""
	assert.Error(t, noTool.Validate())

	noPath := valid
	noPath.Path = ""
	assert.Error(t, noPath.Validate())

	badSeverity := valid
	badSeverity.Severity = "critical"
	assert.Error(t, badSeverity.Validate())

	negative := valid
	negative.StartCol = -1
	assert.Error(t, negative.Validate())
}

func TestFinding_Overlaps(t *testing.T) {
	a := Finding{Path: "x.go", StartLine: 10, EndLine: 12}
	b := Finding{Path: "x.go", StartLine: 12}
	c := Finding{Path: "x.go", StartLine: 13, EndLine: 20}
	d := Finding{Path: "y.go", StartLine: 10, EndLine: 12}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
	assert.False(t, a.Overlaps(d))
	assert.Equal(t, 12, b.LastLine())
}

func TestFinding_WithPayloadCopies(t *testing.T) {
	raw := []byte(`{"a":1}`)
	f := Finding{}.WithPayload(raw)
	raw[2] = 'b'
	assert.Equal(t, `{"a":1}`, string(f.RawPayload))
	assert.Nil(t, Finding{}.WithPayload(nil).RawPayload)
}

func TestCompare_OrderingKey(t *testing.T) {
	base := Finding{Path: "a.py", StartLine: 3, StartCol: 1, ToolID: "lintA", RuleID: "R1"}

	later := base
	later.Path = "b.py"
	assert.Negative(t, Compare(base, later))

	lowerLine := base
	lowerLine.StartLine = 2
	assert.Positive(t, Compare(base, lowerLine))

	otherTool := base
	otherTool.ToolID = "typeB"
	assert.Negative(t, Compare(base, otherTool))

	otherRule := base
	otherRule.RuleID = "R2"
	assert.Negative(t, Compare(base, otherRule))

	otherMessage := base
	otherMessage.Message = "zzz"
	assert.Negative(t, Compare(base, otherMessage))

	assert.Zero(t, Compare(base, base))
}

func TestToolDescriptor_Validate(t *testing.T) {
	d := ToolDescriptor{
		ID:           "pylint",
		Adapter:      "pylint",
		Invocation:   InvocationTemplate{Command: "pylint"},
		OutputFormat: FormatJSON,
		SeverityMap:  map[string]Severity{"error": SeverityError},
	}
	require.NoError(t, d.Validate())
	assert.Equal(t, MergeReplace, d.MergePolicy())

	bad := d
	bad.ID = "py lint"
	assert.Error(t, bad.Validate())

	bad = d
	bad.OutputFormat = "xml"
	assert.Error(t, bad.Validate())

	bad = d
	bad.Merge = "union"
	assert.Error(t, bad.Validate())

	bad = d
	bad.SeverityMap = map[string]Severity{"fatal": "critical"}
	assert.Error(t, bad.Validate())
}

func TestToolDescriptor_MapSeverityIsTotal(t *testing.T) {
	d := ToolDescriptor{SeverityMap: map[string]Severity{"warning": SeverityWarning}}

	sev, ok := d.MapSeverity("WARNING")
	assert.True(t, ok)
	assert.Equal(t, SeverityWarning, sev)

	sev, ok = d.MapSeverity("mystery")
	assert.False(t, ok)
	assert.Equal(t, SeverityInfo, sev)
}

func TestToolDescriptor_Supports(t *testing.T) {
	d := ToolDescriptor{Languages: []string{"python"}}
	assert.True(t, d.Supports("Python"))
	assert.False(t, d.Supports("go"))

	wildcard := ToolDescriptor{Languages: []string{"*"}}
	assert.True(t, wildcard.Supports("go"))
}

func TestAnalysisRun_Validate(t *testing.T) {
	run := AnalysisRun{Targets: []string{"."}, Tools: []string{"pylint"}}
	require.NoError(t, run.Validate())

	assert.Error(t, (&AnalysisRun{Tools: []string{"pylint"}}).Validate())
	assert.NoError(t, (&AnalysisRun{Targets: []string{"."}}).Validate(), "tools are detected")
	assert.Error(t, (&AnalysisRun{Targets: []string{"."}, Language: "go", Timeout: -time.Second}).Validate())
	assert.Error(t, (&AnalysisRun{Targets: []string{"."}, Language: "go", Concurrency: -1}).Validate())
}

func TestErrorTaxonomy(t *testing.T) {
	inv := fmt.Errorf("running: %w", &InvocationError{ToolID: "lintA", Command: "lintA", Err: errors.New("not found")})
	assert.True(t, IsInvocationError(inv))
	assert.False(t, IsFatal(inv))

	agg := fmt.Errorf("wrapped: %w", &AggregationError{Reason: "duplicate tool"})
	assert.True(t, IsFatal(agg))

	pe := &ParseError{ToolID: "eslint", Recovered: 2, Skipped: 1, Offset: 120, Reason: "unexpected EOF"}
	assert.Contains(t, pe.Error(), "recovered 2")
	assert.Contains(t, pe.Error(), "byte 120")
}

func TestRunResult_Parseable(t *testing.T) {
	assert.True(t, RunResult{Command: "x", Status: StatusSucceeded}.Parseable())
	assert.True(t, RunResult{Command: "x", Status: StatusTimedOut}.Parseable())
	assert.False(t, RunResult{Command: "x", Status: StatusCancelled}.Parseable())
	assert.False(t, RunResult{Status: StatusFailed, Err: &InvocationError{}}.Parseable())
	assert.False(t, RunResult{Command: "x", Status: StatusFailed, Err: &InvocationError{}}.Parseable())
}
