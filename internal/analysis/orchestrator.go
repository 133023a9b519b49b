// Package analysis wires the pipeline of one analysis run:
// configuration resolution, execution, normalization and aggregation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/steveyegge/lintrun/internal/aggregate"
	"github.com/steveyegge/lintrun/internal/config"
	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/executor"
	"github.com/steveyegge/lintrun/internal/logging"
	"github.com/steveyegge/lintrun/internal/normalize"
	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

// Config holds orchestrator configuration
type Config struct {
	Registry    *registry.Registry
	Aggregation aggregate.Config

	// LaunchRate limits tool process starts per second; 0 means unlimited
	LaunchRate float64

	// RootMarkers locate the project root when a run does not name one
	RootMarkers []string

	Logger logrus.FieldLogger
	Events events.Sink
}

// Orchestrator coordinates an analysis run:
// - Resolves the project root and each tool's configuration
// - Runs the tools on the executor's worker pool
// - Normalizes every result
// - Aggregates findings into one ordered set
type Orchestrator struct {
	registry    *registry.Registry
	aggregator  *aggregate.Aggregator
	launchRate  float64
	rootMarkers []string
	log         logrus.FieldLogger
	events      events.Sink
}

// New creates an orchestrator. The registry should be sealed.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	agg, err := aggregate.New(cfg.Aggregation)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		registry:    cfg.Registry,
		aggregator:  agg,
		launchRate:  cfg.LaunchRate,
		rootMarkers: cfg.RootMarkers,
		log:         cfg.Logger,
		events:      cfg.Events,
	}
	if o.log == nil {
		o.log = logging.Discard()
	}
	if o.events == nil {
		o.events = events.Discard
	}
	return o, nil
}

// Run analyzes the run's targets and returns the report.
//
// Per-tool problems never fail the run: they are recorded in the report's
// outcomes and the run is marked partial. External cancellation yields a
// cancelled report holding the findings of the units that completed. The
// returned error is non-nil for an invalid request, and for an
// AggregationError; the report then carries status failed.
func (o *Orchestrator) Run(ctx context.Context, run types.AnalysisRun) (*Report, error) {
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis run: %w", err)
	}
	run, err := o.prepare(run)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       run.ID,
		ProjectRoot: run.ProjectRoot,
		Targets:     run.Targets,
		StartedAt:   time.Now(),
	}
	log := o.log.WithField("run_id", run.ID)

	resolver, err := config.NewResolver(run.ProjectRoot, config.WithLogger(log))
	if err != nil {
		return nil, err
	}
	exec, err := executor.New(executor.Config{
		Registry:   o.registry,
		Resolver:   resolver,
		LaunchRate: o.launchRate,
		Logger:     log,
		Events:     o.events,
	})
	if err != nil {
		return nil, err
	}

	units, err := exec.Plan(run)
	if err != nil {
		return nil, fmt.Errorf("planning analysis: %w", err)
	}
	o.emitPlanned(run, units)

	results := exec.Execute(ctx, run, units)

	normalizer, err := normalize.New(o.registry, run.ProjectRoot, run.Targets)
	if err != nil {
		return nil, err
	}

	var all []types.Finding
	var fatal error
	report.Outcomes = make([]Outcome, len(results))
	for i, result := range results {
		findings, parsed := normalizer.Normalize(result)
		diags := append(append([]error(nil), result.Diagnostics...), parsed...)
		for _, d := range diags {
			if types.IsFatal(d) && fatal == nil {
				fatal = d
			}
		}
		report.Outcomes[i] = outcome(result, findings, diags)
		o.emitDiagnostics(run.ID, result.ToolID, diags)
		all = append(all, findings...)
	}

	if fatal == nil {
		report.Findings, report.Stats, fatal = o.aggregator.Aggregate(all)
	}
	report.CompletedAt = time.Now()

	if fatal != nil {
		report.Status = types.StatusFailed
		report.Findings = nil
		o.emitCompleted(report)
		log.WithError(fatal).Error("analysis run failed")
		return report, fatal
	}

	report.Status = runStatus(ctx, report.Outcomes)
	o.emitAggregated(run.ID, report.Stats)
	o.emitCompleted(report)
	return report, nil
}

// prepare fills in the run ID and project root, and makes targets absolute.
func (o *Orchestrator) prepare(run types.AnalysisRun) (types.AnalysisRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	targets := make([]string, 0, len(run.Targets))
	seen := make(map[string]bool)
	for _, t := range run.Targets {
		if run.ProjectRoot != "" && !filepath.IsAbs(t) {
			t = filepath.Join(run.ProjectRoot, t)
		}
		abs, err := filepath.Abs(t)
		if err != nil {
			return run, fmt.Errorf("resolving target %s: %w", t, err)
		}
		if !seen[abs] {
			seen[abs] = true
			targets = append(targets, abs)
		}
	}
	run.Targets = targets

	if run.ProjectRoot == "" {
		root, found, err := config.FindProjectRoot(existingAncestor(targets[0]), o.rootMarkers)
		if err != nil {
			return run, fmt.Errorf("locating project root: %w", err)
		}
		if !found {
			root = commonDir(targets)
		}
		run.ProjectRoot = root
	}
	root, err := filepath.Abs(run.ProjectRoot)
	if err != nil {
		return run, fmt.Errorf("resolving project root: %w", err)
	}
	run.ProjectRoot = root
	return run, nil
}

// runStatus derives the run status from its outcomes.
func runStatus(ctx context.Context, outcomes []Outcome) types.RunStatus {
	if ctx.Err() != nil {
		return types.StatusCancelled
	}
	for _, o := range outcomes {
		if o.Status != types.StatusSucceeded {
			return types.StatusPartial
		}
	}
	return types.StatusSucceeded
}

func outcome(result types.RunResult, findings []types.Finding, diags []error) Outcome {
	o := Outcome{
		ToolID:     result.ToolID,
		Targets:    result.Targets,
		Status:     result.Status,
		Command:    result.Command,
		ExitStatus: result.ExitStatus,
		Duration:   result.Duration,
		ConfigPath: result.Config.Path,
		Findings:   len(findings),
		Err:        result.Err,
		Diags:      diags,
	}
	if result.Err != nil {
		o.Error = result.Err.Error()
	}
	for _, d := range diags {
		o.Diagnostics = append(o.Diagnostics, d.Error())
	}
	if o.Status == types.StatusSucceeded && len(diags) > 0 {
		o.Status = types.StatusPartial
	}
	return o
}

func (o *Orchestrator) emitPlanned(run types.AnalysisRun, units []executor.Unit) {
	tools := make([]string, 0)
	seen := make(map[string]bool)
	for _, u := range units {
		if !seen[u.ToolID()] {
			seen[u.ToolID()] = true
			tools = append(tools, u.ToolID())
		}
	}
	started, err := events.NewRunStartedEvent(run.ID,
		fmt.Sprintf("Analyzing %d target(s) with %s", len(run.Targets), strings.Join(tools, ", ")),
		events.RunStartedData{
			ProjectRoot: run.ProjectRoot,
			Targets:     run.Targets,
			Tools:       tools,
			Units:       len(units),
			Concurrency: run.Concurrency,
		})
	if err == nil {
		o.events.Emit(started)
	}

	for _, u := range units {
		if u.Err != nil {
			o.events.Emit(events.NewEvent(events.EventTypeConfigError, run.ID, u.ToolID(),
				events.SeverityWarning, u.Err.Error()))
			continue
		}
		msg := fmt.Sprintf("%s uses built-in defaults for %d target(s)", u.ToolID(), len(u.Targets))
		if !u.Config.Defaults {
			msg = fmt.Sprintf("%s uses %s for %d target(s)", u.ToolID(), u.Config.Path, len(u.Targets))
		}
		o.events.Emit(events.NewEvent(events.EventTypeConfigResolved, run.ID, u.ToolID(), events.SeverityInfo, msg))
	}
}

func (o *Orchestrator) emitDiagnostics(runID, toolID string, diags []error) {
	for _, d := range diags {
		var pe *types.ParseError
		var ce *types.ConfigError
		switch {
		case errors.As(d, &pe):
			o.events.Emit(events.NewEvent(events.EventTypeParseError, runID, toolID, events.SeverityWarning, d.Error()))
		case errors.As(d, &ce):
			o.events.Emit(events.NewEvent(events.EventTypeConfigError, runID, toolID, events.SeverityWarning, d.Error()))
		}
	}
}

func (o *Orchestrator) emitAggregated(runID string, stats aggregate.Stats) {
	event, err := events.NewAggregationCompletedEvent(runID,
		fmt.Sprintf("Kept %d of %d finding(s)", stats.Output, stats.Input),
		events.AggregationCompletedData{
			Input:           stats.Input,
			Output:          stats.Output,
			ExactDuplicates: stats.ExactDuplicates,
			Equivalent:      stats.Equivalent,
		})
	if err == nil {
		o.events.Emit(event)
	}
}

func (o *Orchestrator) emitCompleted(report *Report) {
	failed := 0
	for _, oc := range report.Outcomes {
		if oc.Status != types.StatusSucceeded && oc.Status != types.StatusPartial {
			failed++
		}
	}
	severity := events.SeverityInfo
	switch report.Status {
	case types.StatusFailed:
		severity = events.SeverityError
	case types.StatusPartial, types.StatusCancelled:
		severity = events.SeverityWarning
	}
	event, err := events.NewRunCompletedEvent(report.RunID, severity,
		fmt.Sprintf("Run %s: %d finding(s)", report.Status, len(report.Findings)),
		events.RunCompletedData{
			Status:     string(report.Status),
			Findings:   len(report.Findings),
			Suppressed: report.Stats.ExactDuplicates + report.Stats.Equivalent,
			Failed:     failed,
			DurationMs: report.Duration().Milliseconds(),
		})
	if err == nil {
		o.events.Emit(event)
	}
}

// existingAncestor returns path, or its nearest existing ancestor.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// commonDir returns the deepest directory containing every target.
func commonDir(targets []string) string {
	dir := dirOf(targets[0])
	for _, t := range targets[1:] {
		for !within(t, dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return dir
}

func dirOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
