package events

import (
	"time"

	"github.com/google/uuid"
)

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType EventType, runID, toolID string, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		ToolID:    toolID,
		Severity:  severity,
		Message:   message,
	}
}

// NewRunStartedEvent creates a run_started event with typed data.
func NewRunStartedEvent(runID, message string, data RunStartedData) (*Event, error) {
	event := NewEvent(EventTypeRunStarted, runID, "", SeverityInfo, message)
	if err := event.SetRunStartedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewRunCompletedEvent creates a run_completed event with typed data.
func NewRunCompletedEvent(runID string, severity EventSeverity, message string, data RunCompletedData) (*Event, error) {
	event := NewEvent(EventTypeRunCompleted, runID, "", severity, message)
	if err := event.SetRunCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewToolCompletedEvent creates a tool_completed event with typed data.
func NewToolCompletedEvent(runID, toolID string, severity EventSeverity, message string, data ToolCompletedData) (*Event, error) {
	event := NewEvent(EventTypeToolCompleted, runID, toolID, severity, message)
	if err := event.SetToolCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewAggregationCompletedEvent creates an aggregation_completed event with typed data.
func NewAggregationCompletedEvent(runID, message string, data AggregationCompletedData) (*Event, error) {
	event := NewEvent(EventTypeAggregationCompleted, runID, "", SeverityInfo, message)
	if err := event.SetAggregationCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewWatchTriggeredEvent creates a watch_triggered event with typed data.
func NewWatchTriggeredEvent(message string, data WatchTriggeredData) (*Event, error) {
	event := NewEvent(EventTypeWatchTriggered, "", "", SeverityInfo, message)
	if err := event.SetWatchTriggeredData(data); err != nil {
		return nil, err
	}
	return event, nil
}
