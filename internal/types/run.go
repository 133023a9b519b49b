package types

import (
	"fmt"
	"strings"
	"time"
)

// EffectiveConfig is the resolved configuration of one tool for one target.
// It is produced by a single resolution call and consumed read-only.
type EffectiveConfig struct {
	ToolID string `json:"tool_id"`
	Target string `json:"target"`

	// Path is the nearest config file, empty when the tool runs on defaults
	Path string `json:"path,omitempty"`

	// Sources lists every file that contributed values, nearest first
	Sources []string `json:"sources,omitempty"`

	// Values holds the parsed (and possibly merged) configuration
	Values map[string]any `json:"values,omitempty"`

	// Defaults is true when no config file was found
	Defaults bool `json:"defaults"`

	// Skipped lists config files that could not be read or parsed while a
	// lower-priority file at the same level was used instead
	Skipped []*ConfigError `json:"-"`
}

// Fingerprint identifies the configuration independent of the target, so
// targets sharing a configuration can be analyzed in one invocation.
func (c EffectiveConfig) Fingerprint() string {
	if c.Defaults {
		return c.ToolID + "|defaults"
	}
	return fmt.Sprintf("%s|%s|%v", c.ToolID, c.Path, c.Sources)
}

// AnalysisRun is a transient request to analyze targets with a set of tools.
type AnalysisRun struct {
	// ID identifies the run in events and history; assigned when empty
	ID string

	// ProjectRoot anchors relative paths; defaults to the common root of the targets
	ProjectRoot string

	// Targets are files or directories to analyze
	Targets []string

	// Tools selects analyzers by ID; empty selects every tool supporting Language
	Tools []string

	// Language is used for automatic tool selection when Tools is empty.
	// With neither set, tools are selected for the languages detected in
	// the targets.
	Language string

	// Timeout overrides every descriptor default; ToolTimeouts override it per tool.
	// Zero leaves each tool on its descriptor default.
	Timeout      time.Duration
	ToolTimeouts map[string]time.Duration

	// Concurrency bounds concurrent tool invocations; 0 means available parallelism
	Concurrency int
}

// Validate checks if the run request has valid field values
func (r *AnalysisRun) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("at least one target path is required")
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative (got %v)", r.Timeout)
	}
	for id, d := range r.ToolTimeouts {
		if d < 0 {
			return fmt.Errorf("timeout for %s cannot be negative (got %v)", id, d)
		}
	}
	if r.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative (got %d)", r.Concurrency)
	}
	return nil
}

// Invocation is a fully expanded command line for one tool run.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// OutputFile is where the tool writes its report; empty means stdout.
	// Adapters set it to PlaceholderOutput and the executor binds a real path.
	OutputFile string
}

// String renders the command line for logs.
func (i Invocation) String() string {
	if len(i.Args) == 0 {
		return i.Command
	}
	return i.Command + " " + strings.Join(i.Args, " ")
}

// RunStatus is the outcome of one tool invocation or of a whole run.
type RunStatus string

const (
	StatusSucceeded   RunStatus = "succeeded"
	StatusPartial     RunStatus = "partial"
	StatusFailed      RunStatus = "failed"
	StatusTimedOut    RunStatus = "timed_out"
	StatusCancelled   RunStatus = "cancelled"
	StatusConfigError RunStatus = "config_error"
)

// IsValid checks if the status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusSucceeded, StatusPartial, StatusFailed, StatusTimedOut, StatusCancelled, StatusConfigError:
		return true
	}
	return false
}

// RunResult is the record of one tool invocation. The executor owns it until
// it is handed to the normalizer; later stages never modify it.
type RunResult struct {
	ToolID  string
	Targets []string
	Config  EffectiveConfig

	// Command is the expanded command line, empty if the tool never started
	Command    string
	ExitStatus int
	Duration   time.Duration
	Stdout     []byte
	Stderr     []byte

	// Output is the raw report: Stdout, or the declared output file's content
	Output []byte

	Status RunStatus

	// Err is the invocation-level error: ConfigError, InvocationError,
	// TimeoutError or ErrCancelled
	Err error

	// Diagnostics are problems that did not stop the tool, such as config
	// files skipped as malformed
	Diagnostics []error
}

// Started reports whether the tool process was launched.
func (r RunResult) Started() bool {
	return r.Command != "" && r.Status != StatusConfigError && !IsInvocationError(r.Err)
}

// Parseable reports whether the result carries output worth parsing:
// cancelled runs and runs that never started are not parsed.
func (r RunResult) Parseable() bool {
	switch r.Status {
	case StatusCancelled, StatusConfigError:
		return false
	}
	return r.Started()
}

// BindOutput returns a copy of the invocation with the {output} placeholder
// replaced by path. Invocations that report on stdout are returned unchanged.
func (i Invocation) BindOutput(path string) Invocation {
	if i.OutputFile != PlaceholderOutput {
		return i
	}
	bound := i
	bound.Args = make([]string, len(i.Args))
	for n, a := range i.Args {
		bound.Args[n] = strings.ReplaceAll(a, PlaceholderOutput, path)
	}
	bound.OutputFile = path
	return bound
}
