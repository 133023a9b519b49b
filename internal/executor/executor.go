// Package executor runs the selected analyzers as isolated processes on a
// bounded worker pool.
//
// A run is split into invocation units: one per tool and group of targets
// sharing an identical EffectiveConfig. Every unit yields exactly one
// RunResult, whatever happens to its process. Results are stored by unit
// index, so the returned slice order depends only on the request.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/steveyegge/lintrun/internal/detect"
	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/logging"
	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

// DefaultTimeout bounds a tool when neither the run nor its descriptor sets one.
const DefaultTimeout = 5 * time.Minute

// waitDelay bounds how long Wait blocks on output pipes after the process
// group was killed.
const waitDelay = 5 * time.Second

// ConfigResolver produces the effective configuration of a tool for a target.
type ConfigResolver interface {
	Resolve(desc *types.ToolDescriptor, target string) (types.EffectiveConfig, error)
}

// Config holds executor configuration
type Config struct {
	Registry *registry.Registry
	Resolver ConfigResolver

	// LaunchRate limits process starts per second; 0 means unlimited
	LaunchRate float64

	Logger logrus.FieldLogger
	Events events.Sink
}

// Executor schedules invocation units.
type Executor struct {
	registry *registry.Registry
	resolver ConfigResolver
	limiter  *rate.Limiter
	log      logrus.FieldLogger
	events   events.Sink
}

// New creates an executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("config resolver is required")
	}
	if cfg.LaunchRate < 0 {
		return nil, fmt.Errorf("launch rate cannot be negative (got %v)", cfg.LaunchRate)
	}

	e := &Executor{
		registry: cfg.Registry,
		resolver: cfg.Resolver,
		log:      cfg.Logger,
		events:   cfg.Events,
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if e.events == nil {
		e.events = events.Discard
	}
	if cfg.LaunchRate > 0 {
		burst := int(cfg.LaunchRate)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), burst)
	}
	return e, nil
}

// Unit is one tool invocation over a group of targets.
type Unit struct {
	Entry   registry.Entry
	Config  types.EffectiveConfig
	Targets []string

	// Err is the ConfigError that prevents this unit from running
	Err error
}

// ToolID returns the unit's tool ID.
func (u Unit) ToolID() string {
	return u.Entry.Descriptor.ID
}

// selectTools picks the run's tools, detecting the languages of the targets
// when the run names neither tools nor a language.
func (e *Executor) selectTools(run types.AnalysisRun) ([]registry.Entry, error) {
	if len(run.Tools) > 0 || run.Language != "" {
		return e.registry.Select(run.Tools, run.Language)
	}
	langs, err := detect.Languages(run.Targets)
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("no supported source files found in %v", run.Targets)
	}
	e.log.WithField("languages", langs).Debug("detected languages")
	return e.registry.SelectLanguages(langs)
}

// Plan resolves configurations and groups targets into invocation units.
// Units are ordered by tool selection order, then by first appearance of
// their configuration among the targets. Targets whose configuration could
// not be resolved get a unit of their own carrying the error.
func (e *Executor) Plan(run types.AnalysisRun) ([]Unit, error) {
	entries, err := e.selectTools(run)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no tools support language %q", run.Language)
	}

	var units []Unit
	for _, entry := range entries {
		byFingerprint := make(map[string]int)
		for _, target := range run.Targets {
			cfg, err := e.resolver.Resolve(entry.Descriptor, target)
			if err != nil {
				var ce *types.ConfigError
				if !errors.As(err, &ce) {
					err = &types.ConfigError{ToolID: entry.Descriptor.ID, Target: target, Path: target, Err: err}
				}
				units = append(units, Unit{Entry: entry, Config: cfg, Targets: []string{target}, Err: err})
				continue
			}
			fp := cfg.Fingerprint()
			if idx, ok := byFingerprint[fp]; ok {
				units[idx].Targets = append(units[idx].Targets, target)
				continue
			}
			byFingerprint[fp] = len(units)
			units = append(units, Unit{Entry: entry, Config: cfg, Targets: []string{target}})
		}
	}
	return units, nil
}

// Run executes every unit of the run and returns one RunResult per unit.
// Per-tool failures are recorded in the results; the error is non-nil only
// when the run could not be planned.
func (e *Executor) Run(ctx context.Context, run types.AnalysisRun) ([]types.RunResult, error) {
	units, err := e.Plan(run)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, run, units), nil
}

// Execute runs planned units. Results are indexed like units.
func (e *Executor) Execute(ctx context.Context, run types.AnalysisRun, units []Unit) []types.RunResult {
	limit := run.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(limit))

	results := make([]types.RunResult, len(units))
	var wg sync.WaitGroup
	for i, unit := range units {
		i, unit := i, unit
		if unit.Err != nil {
			results[i] = configErrorResult(unit)
			e.emitCompleted(run.ID, results[i])
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = cancelledResult(unit)
				e.emitCompleted(run.ID, results[i])
				return
			}
			defer sem.Release(1)

			results[i] = e.runUnit(ctx, run, unit)
			e.emitCompleted(run.ID, results[i])
		}()
	}
	wg.Wait()
	return results
}

// TimeoutFor returns the wall-clock bound of a tool: the run's per-tool
// override, then the run timeout, then the descriptor default.
func TimeoutFor(desc *types.ToolDescriptor, run types.AnalysisRun) time.Duration {
	if d, ok := run.ToolTimeouts[desc.ID]; ok && d > 0 {
		return d
	}
	if run.Timeout > 0 {
		return run.Timeout
	}
	if desc.DefaultTimeout > 0 {
		return desc.DefaultTimeout
	}
	return DefaultTimeout
}

func (e *Executor) runUnit(ctx context.Context, run types.AnalysisRun, unit Unit) types.RunResult {
	desc := unit.Entry.Descriptor
	result := types.RunResult{
		ToolID:      desc.ID,
		Targets:     append([]string(nil), unit.Targets...),
		Config:      unit.Config,
		Diagnostics: skippedConfigs(unit.Config),
	}
	log := e.log.WithFields(logrus.Fields{"tool": desc.ID, "targets": len(unit.Targets)})

	inv, err := unit.Entry.Adapter.BuildInvocation(unit.Config, unit.Targets)
	if err != nil {
		result.Status = types.StatusFailed
		result.Err = &types.InvocationError{ToolID: desc.ID, Command: desc.Invocation.Command, Err: err}
		return result
	}
	if inv.Dir == "" {
		inv.Dir = run.ProjectRoot
	}

	if inv.OutputFile == types.PlaceholderOutput {
		path, cleanup, err := reserveOutputFile(desc.ID)
		if err != nil {
			result.Status = types.StatusFailed
			result.Err = &types.InvocationError{ToolID: desc.ID, Command: inv.Command, Err: err}
			return result
		}
		defer cleanup()
		inv = inv.BindOutput(path)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return cancelledResult(unit)
		}
	}
	if ctx.Err() != nil {
		return cancelledResult(unit)
	}

	timeout := TimeoutFor(desc, run)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(tctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	e.events.Emit(events.NewEvent(events.EventTypeToolStarted, run.ID, desc.ID, events.SeverityInfo,
		fmt.Sprintf("Started %s on %d target(s)", desc.ID, len(unit.Targets))))
	log.WithField("command", inv.String()).Debug("starting tool")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return cancelledResult(unit)
		}
		result.Status = types.StatusFailed
		result.Err = &types.InvocationError{ToolID: desc.ID, Command: inv.String(), Err: err}
		log.WithError(err).Warn("tool could not be started")
		return result
	}
	result.Command = inv.String()
	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	result.ExitStatus = exitStatus(cmd, waitErr)

	switch {
	case ctx.Err() != nil && waitErr != nil:
		// External cancellation: whatever the tool printed is discarded
		result.Status = types.StatusCancelled
		result.Err = types.ErrCancelled
		result.Stdout = nil
		result.Output = nil
		log.Debug("tool cancelled")
		return result
	case waitErr != nil && errors.Is(tctx.Err(), context.DeadlineExceeded):
		result.Status = types.StatusTimedOut
		result.Err = &types.TimeoutError{ToolID: desc.ID, Timeout: timeout}
		log.WithField("timeout", timeout).Warn("tool timed out")
	case waitErr != nil && !isExitError(waitErr):
		result.Status = types.StatusFailed
		result.Err = &types.InvocationError{ToolID: desc.ID, Command: result.Command, Err: waitErr}
		return result
	default:
		result.Status = types.StatusSucceeded
	}

	result.Output = result.Stdout
	if inv.OutputFile != "" {
		data, err := os.ReadFile(inv.OutputFile)
		if err != nil {
			log.WithError(err).Debug("declared output file not readable")
			data = nil
		}
		result.Output = data
	}

	log.WithFields(logrus.Fields{
		"exit":     result.ExitStatus,
		"duration": result.Duration.Round(time.Millisecond),
		"status":   result.Status,
	}).Debug("tool finished")
	return result
}

func (e *Executor) emitCompleted(runID string, r types.RunResult) {
	severity := events.SeverityInfo
	errMsg := ""
	if r.Err != nil {
		severity = events.SeverityWarning
		errMsg = r.Err.Error()
	}
	msg := fmt.Sprintf("%s %s", r.ToolID, r.Status)
	event, err := events.NewToolCompletedEvent(runID, r.ToolID, severity, msg, events.ToolCompletedData{
		Status:     string(r.Status),
		Command:    r.Command,
		Targets:    r.Targets,
		ExitStatus: r.ExitStatus,
		DurationMs: r.Duration.Milliseconds(),
		Error:      errMsg,
	})
	if err != nil {
		e.log.WithError(err).Warn("failed to build tool_completed event")
		return
	}
	e.events.Emit(event)
}

// skippedConfigs reports the malformed config files passed over while
// resolving the unit's configuration.
func skippedConfigs(cfg types.EffectiveConfig) []error {
	if len(cfg.Skipped) == 0 {
		return nil
	}
	diags := make([]error, len(cfg.Skipped))
	for i, s := range cfg.Skipped {
		diags[i] = s
	}
	return diags
}

func configErrorResult(unit Unit) types.RunResult {
	return types.RunResult{
		ToolID:  unit.ToolID(),
		Targets: append([]string(nil), unit.Targets...),
		Config:  unit.Config,
		Status:  types.StatusConfigError,
		Err:     unit.Err,
	}
}

func cancelledResult(unit Unit) types.RunResult {
	return types.RunResult{
		ToolID:  unit.ToolID(),
		Targets: append([]string(nil), unit.Targets...),
		Config:  unit.Config,
		Status:  types.StatusCancelled,
		Err:     types.ErrCancelled,
	}
}

// reserveOutputFile creates an empty file for a tool's report.
func reserveOutputFile(toolID string) (string, func(), error) {
	f, err := os.CreateTemp("", "lintrun-"+toolID+"-*.out")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create output file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// exitStatus returns the process exit code, -1 when it was killed by a signal.
func exitStatus(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
