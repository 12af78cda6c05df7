package events

import "time"

// Envelope wraps a Convergence Engine or Task Coordinator event for
// persistence and broadcast. The engine's EventEmitter port hands pkg/events
// a free-form map[string]any (convergence.Engine.emit), so pkg/events
// doesn't define one struct per event type the way the teacher's timeline/
// session/stage payloads did — Data carries whatever the emitter passed.
type Envelope struct {
	Type      string         `json:"type"`
	EntityID  string         `json:"entity_id"` // task_id or trajectory_id, whichever the payload carries
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"` // RFC3339Nano
}

// NewEnvelope builds an Envelope from an emitted eventType and payload,
// deriving EntityID from the conventional "trajectory_id" or "task_id" keys
// the engine and coordinator use.
func NewEnvelope(eventType string, payload map[string]any) Envelope {
	entityID, _ := payload["trajectory_id"].(string)
	if entityID == "" {
		entityID, _ = payload["task_id"].(string)
	}
	return Envelope{
		Type:      eventType,
		EntityID:  entityID,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// TaskProgressPayload is a transient (NOTIFY-only, not persisted) summary
// broadcast to GlobalTasksChannel for a task-list dashboard, analogous to
// the teacher's SessionProgressPayload.
type TaskProgressPayload struct {
	Type      string `json:"type"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
