package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink receives events. Implementations must be safe for concurrent use;
// the executor emits from every worker.
type Sink interface {
	Emit(event *Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(*Event) {}

// LogSink writes events as structured log entries.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a sink that logs through log.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements Sink.
func (s *LogSink) Emit(event *Event) {
	fields := logrus.Fields{
		"event":  string(event.Type),
		"run_id": event.RunID,
	}
	if event.ToolID != "" {
		fields["tool"] = event.ToolID
	}
	for k, v := range event.Data {
		fields[k] = v
	}
	entry := s.log.WithFields(fields)

	switch event.Severity {
	case SeverityError:
		entry.Error(event.Message)
	case SeverityWarning:
		entry.Warn(event.Message)
	default:
		// Per-tool chatter stays at debug; run boundaries are info
		if event.Type == EventTypeRunStarted || event.Type == EventTypeRunCompleted {
			entry.Info(event.Message)
		} else {
			entry.Debug(event.Message)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// Emit implements Sink.
func (r *Recorder) Emit(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(t EventType) []*Event {
	var out []*Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans events out to several sinks.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(event *Event) {
	for _, s := range m {
		s.Emit(event)
	}
}
