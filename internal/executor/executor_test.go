package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

// scriptAdapter runs a shell script with the targets as arguments.
type scriptAdapter struct {
	script     string
	outputFile bool
}

func (a scriptAdapter) BuildInvocation(cfg types.EffectiveConfig, targets []string) (types.Invocation, error) {
	inv := types.Invocation{Command: a.script}
	if a.outputFile {
		inv.Args = append(inv.Args, "--out", types.PlaceholderOutput)
		inv.OutputFile = types.PlaceholderOutput
	}
	inv.Args = append(inv.Args, targets...)
	return inv, nil
}

func (a scriptAdapter) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	return nil, nil
}

// stubResolver gives every target the default configuration. With byDir,
// targets in the same directory share a config file.
type stubResolver struct {
	byDir  bool
	broken map[string]bool

	// skipped adds a passed-over malformed file to every config
	skipped bool
}

func (r stubResolver) Resolve(desc *types.ToolDescriptor, target string) (types.EffectiveConfig, error) {
	cfg := types.EffectiveConfig{ToolID: desc.ID, Target: target, Defaults: true}
	if r.broken[target] {
		return cfg, &types.ConfigError{ToolID: desc.ID, Target: target, Path: target + "/.lintrc", Err: errors.New("bad yaml")}
	}
	if r.skipped {
		cfg.Skipped = []*types.ConfigError{{ToolID: desc.ID, Target: target, Path: ".lintrc.yaml", Err: errors.New("bad yaml")}}
	}
	if r.byDir {
		cfg.Defaults = false
		cfg.Path = filepath.Join(filepath.Dir(target), ".lintrc")
		cfg.Sources = []string{cfg.Path}
	}
	return cfg, nil
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell script tools")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func descriptor(id, command string) types.ToolDescriptor {
	return types.ToolDescriptor{
		ID:           id,
		Adapter:      "script",
		Languages:    []string{"python"},
		Invocation:   types.InvocationTemplate{Command: command},
		OutputFormat: types.FormatText,
	}
}

type tool struct {
	id         string
	script     string
	outputFile bool
}

func newExecutor(t *testing.T, resolver ConfigResolver, sink events.Sink, tools ...tool) *Executor {
	t.Helper()
	reg := registry.New()
	for _, tl := range tools {
		require.NoError(t, reg.Register(descriptor(tl.id, tl.script), scriptAdapter{script: tl.script, outputFile: tl.outputFile}))
	}
	reg.Seal()
	e, err := New(Config{Registry: reg, Resolver: resolver, Events: sink})
	require.NoError(t, err)
	return e
}

func newRun(root string, targets []string, tools ...string) types.AnalysisRun {
	return types.AnalysisRun{
		ID:          "run-1",
		ProjectRoot: root,
		Targets:     targets,
		Tools:       tools,
		Timeout:     30 * time.Second,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Resolver: stubResolver{}})
	assert.Error(t, err)

	_, err = New(Config{Registry: registry.New()})
	assert.Error(t, err)

	_, err = New(Config{Registry: registry.New(), Resolver: stubResolver{}, LaunchRate: -1})
	assert.Error(t, err)
}

func TestPlan_GroupsTargetsByConfig(t *testing.T) {
	e := newExecutor(t, stubResolver{byDir: true}, nil, tool{id: "lintA", script: "true"}, tool{id: "typeB", script: "true"})

	run := newRun("/proj", []string{"/proj/a/x.py", "/proj/b/y.py", "/proj/a/z.py"}, "lintA", "typeB")
	units, err := e.Plan(run)
	require.NoError(t, err)
	require.Len(t, units, 4)

	assert.Equal(t, "lintA", units[0].ToolID())
	assert.Equal(t, []string{"/proj/a/x.py", "/proj/a/z.py"}, units[0].Targets)
	assert.Equal(t, []string{"/proj/b/y.py"}, units[1].Targets)
	assert.Equal(t, "typeB", units[2].ToolID())
	assert.Equal(t, []string{"/proj/a/x.py", "/proj/a/z.py"}, units[2].Targets)
}

func TestPlan_DefaultsShareOneUnit(t *testing.T) {
	e := newExecutor(t, stubResolver{}, nil, tool{id: "lintA", script: "true"})

	units, err := e.Plan(newRun("/proj", []string{"/proj/a", "/proj/b"}, "lintA"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"/proj/a", "/proj/b"}, units[0].Targets)
}

func TestPlan_DetectsLanguages(t *testing.T) {
	e := newExecutor(t, stubResolver{}, nil, tool{id: "lintA", script: "true"}, tool{id: "typeB", script: "true"})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("x = 1\n"), 0644))
	units, err := e.Plan(newRun(dir, []string{dir}))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "lintA", units[0].ToolID())
	assert.Equal(t, "typeB", units[1].ToolID())

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), nil, 0644))
	_, err = e.Plan(newRun(empty, []string{empty}))
	assert.ErrorContains(t, err, "no supported source files")

	goOnly := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goOnly, "main.go"), nil, 0644))
	_, err = e.Plan(newRun(goOnly, []string{goOnly}))
	assert.ErrorContains(t, err, "no registered tool supports")
}

func TestPlan_UnknownTool(t *testing.T) {
	e := newExecutor(t, stubResolver{}, nil, tool{id: "lintA", script: "true"})

	_, err := e.Plan(newRun("/proj", []string{"/proj"}, "nope"))
	assert.ErrorIs(t, err, types.ErrToolNotFound)
}

func TestRun_CapturesOutputAndExitStatus(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "lintA", `echo "checked $@"; echo "warn" >&2; exit 3`)
	e := newExecutor(t, stubResolver{}, nil, tool{id: "lintA", script: script})

	results, err := e.Run(context.Background(), newRun(dir, []string{"a.py", "b.py"}, "lintA"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, types.StatusSucceeded, r.Status, "non-zero exit is not a failure")
	assert.NoError(t, r.Err)
	assert.Equal(t, 3, r.ExitStatus)
	assert.Equal(t, "checked a.py b.py\n", string(r.Output))
	assert.Equal(t, "warn\n", string(r.Stderr))
	assert.Equal(t, script+" a.py b.py", r.Command)
	assert.True(t, r.Started())
}

func TestRun_SkippedConfigBecomesDiagnostic(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "lintA", `echo ok`)
	e := newExecutor(t, stubResolver{skipped: true}, nil, tool{id: "lintA", script: script})

	results, err := e.Run(context.Background(), newRun(dir, []string{"a.py"}, "lintA"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, types.StatusSucceeded, r.Status)
	require.Len(t, r.Diagnostics, 1)
	var ce *types.ConfigError
	require.ErrorAs(t, r.Diagnostics[0], &ce)
	assert.Equal(t, ".lintrc.yaml", ce.Path)
}

func TestRun_MissingBinaryDoesNotAffectSiblings(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	good := writeScript(t, dir, "typeB", `echo ok`)
	e := newExecutor(t, stubResolver{}, nil,
		tool{id: "lintA", script: filepath.Join(dir, "not-installed")},
		tool{id: "typeB", script: good},
	)

	results, err := e.Run(context.Background(), newRun(dir, []string{"."}, "lintA", "typeB"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.True(t, types.IsInvocationError(results[0].Err))
	assert.False(t, results[0].Started())
	assert.Empty(t, results[0].Output)

	assert.Equal(t, types.StatusSucceeded, results[1].Status)
	assert.Equal(t, "ok\n", string(results[1].Output))
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	slow := writeScript(t, dir, "slow", `echo partial; sleep 30; echo never`)
	fast := writeScript(t, dir, "fast", `echo done`)
	e := newExecutor(t, stubResolver{}, nil, tool{id: "slow", script: slow}, tool{id: "fast", script: fast})

	run := newRun(dir, []string{"."}, "slow", "fast")
	run.ToolTimeouts = map[string]time.Duration{"slow": 300 * time.Millisecond}

	start := time.Now()
	results, err := e.Run(context.Background(), run)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	require.Len(t, results, 2)
	slowResult := results[0]
	assert.Equal(t, types.StatusTimedOut, slowResult.Status)
	var te *types.TimeoutError
	require.ErrorAs(t, slowResult.Err, &te)
	assert.Equal(t, 300*time.Millisecond, te.Timeout)
	assert.Equal(t, "partial\n", string(slowResult.Output), "partial output is kept")
	assert.True(t, slowResult.Parseable())

	assert.Equal(t, types.StatusSucceeded, results[1].Status)
}

// cancelOnComplete cancels the run when the named tool completes.
type cancelOnComplete struct {
	tool   string
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelOnComplete) Emit(event *events.Event) {
	if event.Type == events.EventTypeToolCompleted && event.ToolID == s.tool {
		s.once.Do(s.cancel)
	}
}

func TestRun_CancellationKeepsCompletedResults(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	quick := writeScript(t, dir, "quick", `echo quick-findings`)
	slow := writeScript(t, dir, "slow", `echo started-output; sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelOnComplete{tool: "quick", cancel: cancel}
	e := newExecutor(t, stubResolver{}, sink, tool{id: "quick", script: quick}, tool{id: "slow", script: slow})

	results, err := e.Run(ctx, newRun(dir, []string{"."}, "quick", "slow"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.StatusSucceeded, results[0].Status)
	assert.Equal(t, "quick-findings\n", string(results[0].Output))

	assert.Equal(t, types.StatusCancelled, results[1].Status)
	assert.ErrorIs(t, results[1].Err, types.ErrCancelled)
	assert.Empty(t, results[1].Output)
	assert.False(t, results[1].Parseable())
}

func TestRun_AlreadyCancelled(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "lintA", `echo ran`)
	e := newExecutor(t, stubResolver{}, nil, tool{id: "lintA", script: script})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := e.Run(ctx, newRun(dir, []string{"."}, "lintA"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusCancelled, results[0].Status)
	assert.Empty(t, results[0].Command)
}

func TestRun_DeclaredOutputFile(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "scanner", `echo '{"runs":[]}' > "$2"; echo "progress on stdout"`)
	e := newExecutor(t, stubResolver{}, nil, tool{id: "scanner", script: script, outputFile: true})

	results, err := e.Run(context.Background(), newRun(dir, []string{"."}, "scanner"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, types.StatusSucceeded, r.Status)
	assert.Equal(t, "{\"runs\":[]}\n", string(r.Output))
	assert.Equal(t, "progress on stdout\n", string(r.Stdout))
	assert.NotContains(t, r.Command, types.PlaceholderOutput)

	// The report file is removed once read
	fields := strings.Fields(r.Command)
	require.GreaterOrEqual(t, len(fields), 3)
	_, statErr := os.Stat(fields[2])
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_ConfigErrorIsolatedToTarget(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "lintA", `echo "$@"`)
	rec := &events.Recorder{}
	resolver := stubResolver{broken: map[string]bool{"bad": true}}
	e := newExecutor(t, resolver, rec, tool{id: "lintA", script: script})

	results, err := e.Run(context.Background(), newRun(dir, []string{"good", "bad", "other"}, "lintA"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.StatusSucceeded, results[0].Status)
	assert.Equal(t, "good other\n", string(results[0].Output))

	assert.Equal(t, types.StatusConfigError, results[1].Status)
	assert.Equal(t, []string{"bad"}, results[1].Targets)
	var ce *types.ConfigError
	require.ErrorAs(t, results[1].Err, &ce)
	assert.Equal(t, "bad", ce.Target)
	assert.Empty(t, results[1].Command)

	assert.Len(t, rec.OfType(events.EventTypeToolCompleted), 2)
}

func TestRun_ResultOrderIndependentOfCompletion(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	var tools []tool
	var ids []string
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("tool%d", i)
		// Earlier tools finish later
		body := fmt.Sprintf("sleep 0.%d; echo %s", 4-i, id)
		tools = append(tools, tool{id: id, script: writeScript(t, dir, id, body)})
		ids = append(ids, id)
	}
	e := newExecutor(t, stubResolver{}, nil, tools...)

	run := newRun(dir, []string{"."}, ids...)
	run.Concurrency = 4
	results, err := e.Run(context.Background(), run)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, ids[i], r.ToolID)
		assert.Equal(t, ids[i]+"\n", string(r.Output))
	}
}

func TestRun_LaunchRate(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "lintA", `echo ok`)
	reg := registry.New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Register(descriptor(id, script), scriptAdapter{script: script}))
	}
	e, err := New(Config{Registry: reg, Resolver: stubResolver{}, LaunchRate: 100})
	require.NoError(t, err)

	results, err := e.Run(context.Background(), newRun(dir, []string{"."}, "a", "b", "c"))
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, types.StatusSucceeded, r.Status)
	}
}

func TestTimeoutFor(t *testing.T) {
	desc := descriptor("lintA", "true")
	run := types.AnalysisRun{}
	assert.Equal(t, DefaultTimeout, TimeoutFor(&desc, run))

	desc.DefaultTimeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, TimeoutFor(&desc, run))

	run.Timeout = time.Minute
	assert.Equal(t, time.Minute, TimeoutFor(&desc, run), "run timeout beats the descriptor")

	run.ToolTimeouts = map[string]time.Duration{"lintA": 10 * time.Second, "other": time.Second}
	assert.Equal(t, 10*time.Second, TimeoutFor(&desc, run))
}

func TestTimeoutFor_RunTimeoutAppliesToBuiltinTools(t *testing.T) {
	reg, err := registry.NewDefault()
	require.NoError(t, err)

	descs := reg.List("")
	require.NotEmpty(t, descs)
	run := types.AnalysisRun{Timeout: time.Second}
	for _, desc := range descs {
		assert.Equal(t, time.Second, TimeoutFor(desc, run), desc.ID)
		assert.Equal(t, desc.DefaultTimeout, TimeoutFor(desc, types.AnalysisRun{}), desc.ID)
	}
}
