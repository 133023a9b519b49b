package aggregate

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lintrun/internal/types"
)

func finding(tool, rule, path string, line int) types.Finding {
	return types.Finding{
		ToolID:    tool,
		RuleID:    rule,
		Severity:  types.SeverityWarning,
		Path:      path,
		StartLine: line,
		Message:   rule + " reported",
	}
}

func TestAggregate_SortsByOrderingKey(t *testing.T) {
	agg, err := New(DefaultConfig())
	require.NoError(t, err)

	in := []types.Finding{
		finding("typeB", "r1", "b.py", 1),
		finding("lintA", "r2", "a.py", 10),
		finding("lintA", "r1", "a.py", 2),
		finding("typeB", "r0", "a.py", 2),
	}
	out, stats, err := agg.Aggregate(in)
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, "a.py:2 lintA r1", label(out[0]))
	assert.Equal(t, "a.py:2 typeB r0", label(out[1]))
	assert.Equal(t, "a.py:10 lintA r2", label(out[2]))
	assert.Equal(t, "b.py:1 typeB r1", label(out[3]))
	assert.Equal(t, Stats{Input: 4, Output: 4}, stats)

	// Input untouched
	assert.Equal(t, "typeB", in[0].ToolID)
}

func label(f types.Finding) string {
	return f.Location() + " " + f.ToolID + " " + f.RuleID
}

func TestAggregate_ExactSameToolDuplicates(t *testing.T) {
	agg, err := New(DefaultConfig())
	require.NoError(t, err)

	dup := finding("lintA", "r1", "a.py", 3)
	out, stats, err := agg.Aggregate([]types.Finding{dup, finding("lintA", "r1", "a.py", 4), dup})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, stats.ExactDuplicates)
}

func TestAggregate_DifferentToolsSameLineKept(t *testing.T) {
	agg, err := New(DefaultConfig())
	require.NoError(t, err)

	a := finding("lintA", "unused-import", "src/m.py", 5)
	b := finding("typeB", "F401", "src/m.py", 5)
	b.Message = a.Message

	out, stats, err := agg.Aggregate([]types.Finding{a, b})
	require.NoError(t, err)
	require.Len(t, out, 2, "no equivalence declared, both findings stay")
	assert.Equal(t, "lintA", out[0].ToolID)
	assert.Equal(t, "typeB", out[1].ToolID)
	assert.Zero(t, stats.Equivalent)
}

func TestAggregate_EquivalenceTable(t *testing.T) {
	agg, err := New(Config{Equivalences: [][]string{{"lintA:unused-import", "typeB:F401"}}})
	require.NoError(t, err)

	wide := finding("typeB", "F401", "m.py", 4)
	wide.EndLine = 6

	in := []types.Finding{
		wide,
		finding("lintA", "unused-import", "m.py", 5), // overlaps wide
		finding("lintA", "unused-import", "m.py", 9), // no overlap
		finding("lintA", "unused-import", "n.py", 5), // other path
		finding("lintA", "other-rule", "m.py", 5),    // not in the class
	}
	out, stats, err := agg.Aggregate(in)
	require.NoError(t, err)

	labels := make([]string, len(out))
	for i, f := range out {
		labels[i] = label(f)
	}
	assert.Equal(t, []string{
		"m.py:4 typeB F401",
		"m.py:5 lintA other-rule",
		"m.py:9 lintA unused-import",
		"n.py:5 lintA unused-import",
	}, labels)
	assert.Equal(t, 1, stats.Equivalent)
	assert.NoError(t, stats.Validate())
}

func TestAggregate_SameRuleRepeatsNotCollapsedByClass(t *testing.T) {
	agg, err := New(Config{Equivalences: [][]string{{"lintA:r1", "typeB:r2"}}})
	require.NoError(t, err)

	first := finding("lintA", "r1", "a.py", 1)
	first.EndLine = 5
	second := finding("lintA", "r1", "a.py", 3)

	out, _, err := agg.Aggregate([]types.Finding{first, second})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	agg, err := New(Config{Equivalences: [][]string{{"lintA:r1", "typeB:r1"}}})
	require.NoError(t, err)

	withPayload := func(f types.Finding, payload string) types.Finding {
		raw, _ := json.Marshal(map[string]string{"p": payload})
		return f.WithPayload(raw)
	}
	in := []types.Finding{
		finding("typeB", "r1", "a.py", 2),
		finding("lintA", "r1", "a.py", 2),
		withPayload(finding("lintA", "r2", "a.py", 7), "x"),
		withPayload(finding("lintA", "r2", "a.py", 7), "y"),
		finding("scanC", "S1", "b.py", 1),
	}
	reversed := slices.Clone(in)
	slices.Reverse(reversed)

	out1, stats1, err := agg.Aggregate(in)
	require.NoError(t, err)
	out2, stats2, err := agg.Aggregate(reversed)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Equal(t, stats1, stats2)
}

func TestAggregate_InvariantViolation(t *testing.T) {
	agg, err := New(DefaultConfig())
	require.NoError(t, err)

	bad := finding("", "r1", "a.py", 1)
	_, _, err = agg.Aggregate([]types.Finding{finding("lintA", "r1", "a.py", 1), bad})
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))

	bad = finding("lintA", "r1", "a.py", 1)
	bad.Severity = "critical"
	_, _, err = agg.Aggregate([]types.Finding{bad})
	assert.True(t, types.IsFatal(err))
}

func TestAggregate_Empty(t *testing.T) {
	agg, err := New(DefaultConfig())
	require.NoError(t, err)

	out, stats, err := agg.Aggregate(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, Stats{}, stats)
}

func TestStats_Validate(t *testing.T) {
	assert.NoError(t, Stats{Input: 5, Output: 3, ExactDuplicates: 1, Equivalent: 1}.Validate())
	assert.Error(t, Stats{Input: 5, Output: 3}.Validate())
	assert.Error(t, Stats{Input: -1, Output: -1}.Validate())
}
