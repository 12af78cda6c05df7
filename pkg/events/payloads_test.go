package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeSetsTimestamp(t *testing.T) {
	before := time.Now().UTC()
	env := NewEnvelope(EventTaskCreated, map[string]any{"task_id": "task-1"})
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	require.NoError(t, err)
	assert.True(t, !ts.Before(before))
}

func TestNewEnvelopePrefersTrajectoryIDOverTaskID(t *testing.T) {
	env := NewEnvelope(EventDecompositionTriggered, map[string]any{
		"trajectory_id": "traj-1",
		"task_id":       "task-1",
	})
	assert.Equal(t, "traj-1", env.EntityID)
}

func TestNewEnvelopePreservesData(t *testing.T) {
	payload := map[string]any{"trajectory_id": "traj-2", "strategy": "Reformulate", "round": 3}
	env := NewEnvelope(EventStrategySelected, payload)

	assert.Equal(t, EventStrategySelected, env.Type)
	assert.Equal(t, "Reformulate", env.Data["strategy"])
	assert.Equal(t, 3, env.Data["round"])
}

func TestEmitterAdapterDropsPayloadWithoutIdentifiers(t *testing.T) {
	publisher := NewEventPublisher(nil)
	adapter := NewEmitterAdapter(publisher)

	assert.NotPanics(t, func() {
		adapter.Emit(context.Background(), "SomeEvent", map[string]any{"foo": "bar"})
	})
}

func TestTaskProgressPayloadDefaults(t *testing.T) {
	payload := TaskProgressPayload{Type: "task.progress", TaskID: "task-1", Status: "queued", Timestamp: time.Now().Format(time.RFC3339Nano)}
	assert.Equal(t, "task.progress", payload.Type)
	assert.Equal(t, "queued", payload.Status)
}
