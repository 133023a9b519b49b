package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/steveyegge/lintrun/internal/events"
)

// StoreEvent stores a run event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	var data sql.NullString
	if len(event.Data) > 0 {
		dataJSON, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		data = sql.NullString{String: string(dataJSON), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (id, type, timestamp, run_id, tool_id, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		event.Timestamp.UnixMilli(),
		event.RunID,
		event.ToolID,
		string(event.Severity),
		event.Message,
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetRunEvents retrieves a run's events in emission order
func (s *SQLiteStorage) GetRunEvents(ctx context.Context, runID string) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, timestamp, run_id, tool_id, severity, message, data
		FROM run_events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer rows.Close()

	var result []*events.Event
	for rows.Next() {
		var (
			event               events.Event
			eventType, severity string
			timestamp           int64
			data                sql.NullString
		)
		if err := rows.Scan(&event.ID, &eventType, &timestamp, &event.RunID, &event.ToolID,
			&severity, &event.Message, &data); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)
		event.Timestamp = time.UnixMilli(timestamp)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run event rows: %w", err)
	}
	return result, nil
}

// EventSink returns a sink that stores every event. Store failures are
// logged and do not interrupt the run.
func (s *SQLiteStorage) EventSink(ctx context.Context, log logrus.FieldLogger) events.Sink {
	return &eventSink{ctx: ctx, store: s, log: log}
}

type eventSink struct {
	ctx   context.Context
	store *SQLiteStorage
	log   logrus.FieldLogger
}

func (e *eventSink) Emit(event *events.Event) {
	// Stored even after the run's context is cancelled
	ctx := context.WithoutCancel(e.ctx)
	if err := e.store.StoreEvent(ctx, event); err != nil {
		e.log.WithError(err).WithField("event", string(event.Type)).Warn("failed to store event")
	}
}
