package events

import (
	"time"
)

// EventType represents the type of event that occurred during an analysis run.
type EventType string

const (
	// EventTypeRunStarted indicates an analysis run was accepted and planned
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates an analysis run finished (any status)
	EventTypeRunCompleted EventType = "run_completed"

	// EventTypeConfigResolved indicates a tool's configuration was resolved for a target group
	EventTypeConfigResolved EventType = "config_resolved"
	// EventTypeConfigError indicates a tool's configuration could not be read
	EventTypeConfigError EventType = "config_error"

	// EventTypeToolStarted indicates a tool process was launched
	EventTypeToolStarted EventType = "tool_started"
	// EventTypeToolCompleted indicates a tool invocation finished (any status)
	EventTypeToolCompleted EventType = "tool_completed"

	// EventTypeParseError indicates part of a tool's output could not be parsed
	EventTypeParseError EventType = "parse_error"

	// EventTypeAggregationCompleted indicates findings were merged and de-duplicated
	EventTypeAggregationCompleted EventType = "aggregation_completed"

	// EventTypeWatchTriggered indicates watch mode saw a change and queued a re-run
	EventTypeWatchTriggered EventType = "watch_triggered"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event represents something that happened during an analysis run.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// RunID is the analysis run that produced this event
	RunID string `json:"run_id"`
	// ToolID is the tool the event concerns, empty for run-level events
	ToolID string `json:"tool_id,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
}

// RunStartedData contains structured data for run start events.
type RunStartedData struct {
	ProjectRoot string   `json:"project_root"`
	Targets     []string `json:"targets"`
	Tools       []string `json:"tools"`
	Units       int      `json:"units"`
	Concurrency int      `json:"concurrency"`
}

// RunCompletedData contains structured data for run completion events.
type RunCompletedData struct {
	Status     string `json:"status"`
	Findings   int    `json:"findings"`
	Suppressed int    `json:"suppressed"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
}

// ToolCompletedData contains structured data for tool completion events.
type ToolCompletedData struct {
	Status     string   `json:"status"`
	Command    string   `json:"command,omitempty"`
	Targets    []string `json:"targets"`
	ExitStatus int      `json:"exit_status"`
	DurationMs int64    `json:"duration_ms"`
	Findings   int      `json:"findings"`
	Error      string   `json:"error,omitempty"`
}

// AggregationCompletedData contains structured data for aggregation events.
type AggregationCompletedData struct {
	Input           int `json:"input"`
	Output          int `json:"output"`
	ExactDuplicates int `json:"exact_duplicates"`
	Equivalent      int `json:"equivalent"`
}

// WatchTriggeredData contains structured data for watch trigger events.
type WatchTriggeredData struct {
	Paths   []string `json:"paths"`
	Changes int      `json:"changes"`
}
