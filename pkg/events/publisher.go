package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventPublisher publishes events for WebSocket delivery. Persistent
// events are stored in the events table then broadcast via NOTIFY;
// transient events (task-list progress pings) are broadcast via NOTIFY
// only.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB from database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// PublishTrajectoryEvent persists and broadcasts one Convergence Engine
// event (spec.md §4, §6) to its trajectory's channel.
func (p *EventPublisher) PublishTrajectoryEvent(ctx context.Context, trajectoryID, eventType string, data map[string]any) error {
	env := NewEnvelope(eventType, data)
	env.EntityID = trajectoryID
	payloadJSON, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return p.persistAndNotify(ctx, trajectoryID, TrajectoryChannel(trajectoryID), payloadJSON)
}

// PublishTaskEvent persists and broadcasts a Task Coordinator lifecycle
// event to its task's channel.
func (p *EventPublisher) PublishTaskEvent(ctx context.Context, taskID, eventType string, data map[string]any) error {
	env := NewEnvelope(eventType, data)
	env.EntityID = taskID
	payloadJSON, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return p.persistAndNotify(ctx, taskID, TaskChannel(taskID), payloadJSON)
}

// PublishTaskProgress broadcasts a transient task.progress event (no DB
// persistence) to the global tasks channel, for a dashboard's task-list
// view.
func (p *EventPublisher) PublishTaskProgress(ctx context.Context, payload TaskProgressPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TaskProgressPayload: %w", err)
	}
	return p.notifyOnly(ctx, GlobalTasksChannel, payloadJSON)
}

// --- Internal core methods ---

// persistAndNotify persists a pre-marshaled event to the database and
// broadcasts via NOTIFY in a single transaction (pg_notify is
// transactional — held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, entityID, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (entity_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		entityID, channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}

	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without
// persisting to DB.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// --- Internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for
// NOTIFY delivery and applies truncation if the result exceeds
// PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enrichedBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}

	return truncateIfNeeded(string(enrichedBytes))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the
// full JSON payload bytes, extracting only the routing fields the client
// needs to fetch the complete event from the database.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		EntityID  string `json:"entity_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"entity_id": routing.EntityID,
		"truncated": true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}

// EmitterAdapter adapts EventPublisher to convergence.EventEmitter
// (pkg/convergence/engine.go), so the engine can fire events without
// depending on pkg/events directly.
type EmitterAdapter struct {
	publisher *EventPublisher
}

// NewEmitterAdapter wraps publisher as a convergence.EventEmitter.
func NewEmitterAdapter(publisher *EventPublisher) *EmitterAdapter {
	return &EmitterAdapter{publisher: publisher}
}

// Emit implements convergence.EventEmitter. A payload with a trajectory_id
// (every event the engine emits carries one) goes to the trajectory's
// channel; otherwise a task_id sends it to the task's channel, and a payload
// with neither is dropped. Publication errors are logged, not returned,
// matching the engine's own best-effort emit contract.
func (a *EmitterAdapter) Emit(ctx context.Context, eventType string, payload map[string]any) {
	if trajectoryID, ok := payload["trajectory_id"].(string); ok && trajectoryID != "" {
		if err := a.publisher.PublishTrajectoryEvent(ctx, trajectoryID, eventType, payload); err != nil {
			slog.Warn("failed to publish trajectory event", "event", eventType, "error", err)
		}
		return
	}
	if taskID, ok := payload["task_id"].(string); ok && taskID != "" {
		if err := a.publisher.PublishTaskEvent(ctx, taskID, eventType, payload); err != nil {
			slog.Warn("failed to publish task event", "event", eventType, "error", err)
		}
		return
	}
	slog.Warn("event payload has no trajectory_id or task_id, dropping", "event", eventType)
}
