package analysis

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lintrun/internal/adapters"
	"github.com/steveyegge/lintrun/internal/aggregate"
	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

// project is a temporary source tree with fake analyzers.
type project struct {
	t    *testing.T
	root string
	bin  string
}

func newProject(t *testing.T) *project {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell script tools")
	}
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	p := &project{t: t, root: root, bin: t.TempDir()}
	p.write("src/a.py", "import os\n")
	p.write("src/b.py", "x: int = 'y'\n")
	return p
}

func (p *project) write(rel, content string) {
	p.t.Helper()
	path := filepath.Join(p.root, rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0644))
}

// tool writes a fake analyzer script printing mypy-style lines.
func (p *project) tool(name, body string) string {
	p.t.Helper()
	path := filepath.Join(p.bin, name)
	require.NoError(p.t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func (p *project) registry(tools map[string]string) *registry.Registry {
	p.t.Helper()
	reg := registry.New()
	for id, command := range tools {
		desc := types.ToolDescriptor{
			ID:              id,
			Adapter:         "mypy",
			Languages:       []string{"python"},
			ConfigFilenames: []string{"." + id + ".yaml", "." + id + ".yml"},
			ConfigFlag:      "--config",
			Invocation:      types.InvocationTemplate{Command: command, Args: []string{"{config}", "{targets}"}},
			OutputFormat:    types.FormatText,
			SeverityMap: map[string]types.Severity{
				"error": types.SeverityError,
				"note":  types.SeverityInfo,
			},
		}
		adapter, err := adapters.New(&desc)
		require.NoError(p.t, err)
		require.NoError(p.t, reg.Register(desc, adapter))
	}
	reg.Seal()
	return reg
}

func (p *project) run(tools ...string) types.AnalysisRun {
	return types.AnalysisRun{
		ProjectRoot: p.root,
		Targets:     []string{"src"},
		Tools:       tools,
		Timeout:     30 * time.Second,
		Concurrency: 4,
	}
}

func newOrchestrator(t *testing.T, reg *registry.Registry, sink events.Sink) *Orchestrator {
	t.Helper()
	o, err := New(Config{Registry: reg, Events: sink})
	require.NoError(t, err)
	return o
}

func TestRun_DistinctRulesOnSameLineKept(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: unused import  [unused-import]"`),
		"typeB": p.tool("typeb", `echo "src/a.py:1: error: module imported but unused  [F401]"`),
	})
	rec := &events.Recorder{}

	report, err := newOrchestrator(t, reg, rec).Run(context.Background(), p.run("lintA", "typeB"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusSucceeded, report.Status)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "lintA", report.Findings[0].ToolID)
	assert.Equal(t, "typeB", report.Findings[1].ToolID)
	assert.Equal(t, "src/a.py", report.Findings[0].Path)
	assert.Equal(t, map[string]int{"lintA": 1, "typeB": 1}, report.FindingsByTool())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, p.root, report.ProjectRoot)

	assert.Len(t, rec.OfType(events.EventTypeRunStarted), 1)
	assert.Len(t, rec.OfType(events.EventTypeRunCompleted), 1)
	assert.Len(t, rec.OfType(events.EventTypeAggregationCompleted), 1)
	assert.Len(t, rec.OfType(events.EventTypeConfigResolved), 2)
}

func TestRun_EquivalentRulesCollapse(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: unused import  [unused-import]"`),
		"typeB": p.tool("typeb", `echo "src/a.py:1: error: module imported but unused  [F401]"`),
	})
	o, err := New(Config{
		Registry:    reg,
		Aggregation: aggregate.Config{Equivalences: [][]string{{"lintA:unused-import", "typeB:F401"}}},
	})
	require.NoError(t, err)

	report, err := o.Run(context.Background(), p.run("lintA", "typeB"))
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "lintA", report.Findings[0].ToolID)
	assert.Equal(t, 1, report.Stats.Equivalent)
}

func TestRun_UnavailableToolIsNotHardFailure(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": filepath.Join(p.bin, "not-installed"),
		"typeB": p.tool("typeb", `echo "src/b.py:1: error: Incompatible types  [assignment]"`),
	})

	report, err := newOrchestrator(t, reg, nil).Run(context.Background(), p.run("lintA", "typeB"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusPartial, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "typeB", report.Findings[0].ToolID)

	failed := report.OutcomesWithStatus(types.StatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "lintA", failed[0].ToolID)
	assert.True(t, types.IsInvocationError(failed[0].Err))
	assert.True(t, failed[0].Failed())
	assert.NotEmpty(t, failed[0].Error)
}

// cancelAfter cancels the run once the named tool completes.
type cancelAfter struct {
	tool   string
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelAfter) Emit(event *events.Event) {
	if event.Type == events.EventTypeToolCompleted && event.ToolID == s.tool {
		s.once.Do(s.cancel)
	}
}

func TestRun_CancellationKeepsCompletedTools(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: unused import  [unused-import]"`),
		"typeB": p.tool("typeb", `echo "src/b.py:1: error: early finding  [x]"; sleep 30`),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := newOrchestrator(t, reg, &cancelAfter{tool: "lintA", cancel: cancel})
	start := time.Now()
	report, err := o.Run(ctx, p.run("lintA", "typeB"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Equal(t, types.StatusCancelled, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "lintA", report.Findings[0].ToolID)

	cancelled := report.OutcomesWithStatus(types.StatusCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "typeB", cancelled[0].ToolID)
	assert.Zero(t, cancelled[0].Findings)
	assert.ErrorIs(t, cancelled[0].Err, types.ErrCancelled)
}

func TestRun_TimeoutReportedOnceWithoutBlocking(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: unused import  [unused-import]"`),
		"typeB": p.tool("typeb", `echo "src/b.py:1: error: before hang  [x]"; sleep 30`),
	})
	run := p.run("lintA", "typeB")
	run.ToolTimeouts = map[string]time.Duration{"typeB": 300 * time.Millisecond}

	start := time.Now()
	report, err := newOrchestrator(t, reg, nil).Run(context.Background(), run)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Equal(t, types.StatusPartial, report.Status)
	timedOut := report.OutcomesWithStatus(types.StatusTimedOut)
	require.Len(t, timedOut, 1)
	assert.Equal(t, "typeB", timedOut[0].ToolID)
	var te *types.TimeoutError
	assert.ErrorAs(t, timedOut[0].Err, &te)

	// The complete line printed before the hang is still reported
	assert.Equal(t, map[string]int{"lintA": 1, "typeB": 1}, report.FindingsByTool())
	assert.Len(t, report.Outcomes, 2)
}

func TestRun_TruncatedOutputYieldsOneParseError(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"typeB": p.tool("typeb", `printf 'src/a.py:1: error: first  [x]\nsrc/b.py:1: error: second  [x]\nsrc/b.py:2: err'`),
	})
	rec := &events.Recorder{}

	report, err := newOrchestrator(t, reg, rec).Run(context.Background(), p.run("typeB"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusPartial, report.Status)
	assert.Len(t, report.Findings, 2)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusPartial, report.Outcomes[0].Status)
	require.Len(t, report.Outcomes[0].Diags, 1)
	var pe *types.ParseError
	require.ErrorAs(t, report.Outcomes[0].Diags[0], &pe)
	assert.Equal(t, 2, pe.Recovered)
	assert.Len(t, rec.OfType(events.EventTypeParseError), 1)
}

func TestRun_OrderIndependentOfLaunchOrder(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `sleep 0.2; echo "src/b.py:1: error: b  [r1]"; echo "src/a.py:3: error: a  [r1]"`),
		"typeB": p.tool("typeb", `echo "src/a.py:3: error: a  [r2]"; echo "src/a.py:1: note: n"`),
	})
	o := newOrchestrator(t, reg, nil)

	forward, err := o.Run(context.Background(), p.run("lintA", "typeB"))
	require.NoError(t, err)
	reversed, err := o.Run(context.Background(), p.run("typeB", "lintA"))
	require.NoError(t, err)

	assert.Equal(t, forward.Findings, reversed.Findings)
	assert.Len(t, forward.Findings, 4)
}

func TestRun_NearestConfigPassedToTool(t *testing.T) {
	p := newProject(t)
	p.write(".lintA.yaml", "strict: false\n")
	p.write("src/.lintA.yaml", "strict: true\n")
	reg := p.registry(map[string]string{
		// Echo the config path back as a finding message
		"lintA": p.tool("linta", `echo "src/a.py:1: error: config $2  [cfg]"`),
	})

	report, err := newOrchestrator(t, reg, nil).Run(context.Background(), p.run("lintA"))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)

	nearest := filepath.Join(p.root, "src", ".lintA.yaml")
	assert.Equal(t, nearest, report.Outcomes[0].ConfigPath)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "config "+nearest, report.Findings[0].Message)
}

func TestRun_MalformedConfigIsolatedToTool(t *testing.T) {
	p := newProject(t)
	p.write("src/.lintA.yaml", "strict: [unclosed\n")
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: never  [x]"`),
		"typeB": p.tool("typeb", `echo "src/b.py:1: error: fine  [x]"`),
	})
	rec := &events.Recorder{}

	report, err := newOrchestrator(t, reg, rec).Run(context.Background(), p.run("lintA", "typeB"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusPartial, report.Status)
	configErrors := report.OutcomesWithStatus(types.StatusConfigError)
	require.Len(t, configErrors, 1)
	assert.Equal(t, "lintA", configErrors[0].ToolID)
	var ce *types.ConfigError
	assert.ErrorAs(t, configErrors[0].Err, &ce)

	assert.Equal(t, map[string]int{"typeB": 1}, report.FindingsByTool())
	assert.Len(t, rec.OfType(events.EventTypeConfigError), 1)
}

func TestRun_SkippedMalformedConfigReported(t *testing.T) {
	p := newProject(t)
	p.write("src/.lintA.yaml", "strict: [unclosed\n")
	p.write("src/.lintA.yml", "strict: true\n")
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "src/a.py:1: error: found  [x]"`),
	})
	rec := &events.Recorder{}

	report, err := newOrchestrator(t, reg, rec).Run(context.Background(), p.run("lintA"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusPartial, report.Status)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, types.StatusPartial, out.Status)
	assert.Equal(t, filepath.Join(p.root, "src", ".lintA.yml"), out.ConfigPath)
	assert.Equal(t, 1, out.Findings, "the tool still ran with the valid file")

	require.Len(t, out.Diags, 1)
	var ce *types.ConfigError
	require.ErrorAs(t, out.Diags[0], &ce)
	assert.Equal(t, filepath.Join(p.root, "src", ".lintA.yaml"), ce.Path)
	require.Len(t, out.Diagnostics, 1)
	assert.Contains(t, out.Diagnostics[0], ".lintA.yaml")
	assert.Len(t, rec.OfType(events.EventTypeConfigError), 1)
}

func TestRun_DetectsProjectRoot(t *testing.T) {
	p := newProject(t)
	reg := p.registry(map[string]string{
		"lintA": p.tool("linta", `echo "$(pwd -P)/src/a.py:1: error: abs path  [x]"`),
	})

	run := p.run("lintA")
	run.ProjectRoot = ""
	run.Targets = []string{filepath.Join(p.root, "src")}

	report, err := newOrchestrator(t, reg, nil).Run(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, p.root, report.ProjectRoot)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "src/a.py", report.Findings[0].Path)
}

func TestRun_InvalidRequest(t *testing.T) {
	reg := registry.New()
	reg.Seal()
	o := newOrchestrator(t, reg, nil)

	_, err := o.Run(context.Background(), types.AnalysisRun{Tools: []string{"lintA"}})
	assert.ErrorContains(t, err, "invalid analysis run")

	dir := t.TempDir()
	_, err = o.Run(context.Background(), types.AnalysisRun{ProjectRoot: dir, Targets: []string{dir}, Tools: []string{"ghost"}})
	assert.ErrorIs(t, err, types.ErrToolNotFound)
}

func TestCommonDir(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "x", "a.py")
	b := filepath.Join(root, "x", "y", "b.py")
	c := filepath.Join(root, "z")
	assert.Equal(t, filepath.Join(root, "x"), commonDir([]string{a, b}))
	assert.Equal(t, root, commonDir([]string{a, b, c}))
}
