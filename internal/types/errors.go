package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled marks tool runs that were stopped by external cancellation.
var ErrCancelled = errors.New("analysis cancelled")

// ErrToolNotFound is returned when a tool ID is not registered.
var ErrToolNotFound = errors.New("tool not registered")

// ConfigError reports an unreadable or malformed config file. It is
// attributed to one tool and target and never affects other tools.
type ConfigError struct {
	ToolID string
	Target string
	Path   string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %s (target %s) in %s: %v", e.ToolID, e.Target, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InvocationError reports a tool that could not be started at all.
type InvocationError struct {
	ToolID  string
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("cannot invoke %s (%s): %v", e.ToolID, e.Command, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError reports a tool that exceeded its wall-clock bound and was terminated.
type TimeoutError struct {
	ToolID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded timeout of %v and was terminated", e.ToolID, e.Timeout)
}

// ParseError describes the part of a tool's output that could not be parsed.
// Adapters return at most one per output.
type ParseError struct {
	ToolID string

	// Recovered is the number of findings parsed successfully
	Recovered int

	// Skipped is the number of records or lines that could not be parsed
	Skipped int

	// Offset is the byte offset where parsing stopped, -1 if it reached the end
	Offset int64

	Reason string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s output partially unparsed: %s (recovered %d, skipped %d",
		e.ToolID, e.Reason, e.Recovered, e.Skipped)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(", stopped at byte %d", e.Offset)
	}
	return msg + ")"
}

// AggregationError reports an internal invariant violation. It is the only
// error class that fails a whole run.
type AggregationError struct {
	Reason string
	Err    error
}

func (e *AggregationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aggregation invariant violated: %s: %v", e.Reason, e.Err)
	}
	return "aggregation invariant violated: " + e.Reason
}

func (e *AggregationError) Unwrap() error { return e.Err }

// IsInvocationError reports whether err wraps an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var ae *AggregationError
	return errors.As(err, &ae)
}
