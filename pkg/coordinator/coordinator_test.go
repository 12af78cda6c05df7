package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/guardrails"
	"github.com/odgrim/abathur/pkg/task"
	"github.com/odgrim/abathur/pkg/taskstore"
)

func TestDiamondDependencyScenario(t *testing.T) {
	// Mirrors spec.md §8 scenario S1.
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	a := task.New("A", "")
	a.ID = "A"
	b := task.New("B", "")
	b.ID = "B"
	b.Dependencies = []string{"A"}
	c := task.New("C", "")
	c.ID = "C"
	c.Dependencies = []string{"A"}
	d := task.New("D", "")
	d.ID = "D"
	d.Dependencies = []string{"B", "C"}

	for _, tk := range []*task.Task{a, b, c, d} {
		_, err := store.Submit(ctx, tk)
		require.NoError(t, err)
	}

	for _, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, coord.CoordinateLifecycle(ctx, id))
	}

	gotA, _ := store.Get(ctx, "A")
	assert.Equal(t, task.StatusReady, gotA.Status)
	gotB, _ := store.Get(ctx, "B")
	assert.Equal(t, task.StatusBlocked, gotB.Status)
	gotD, _ := store.Get(ctx, "D")
	assert.Equal(t, task.StatusBlocked, gotD.Status)

	// Complete A: B and C become eligible, D stays blocked.
	require.NoError(t, store.UpdateStatus(ctx, "A", task.StatusRunning))
	require.NoError(t, coord.HandleTaskCompletion(ctx, "A", "done"))
	require.NoError(t, coord.CoordinateLifecycle(ctx, "B"))
	require.NoError(t, coord.CoordinateLifecycle(ctx, "C"))

	gotB, _ = store.Get(ctx, "B")
	assert.Equal(t, task.StatusReady, gotB.Status)
	gotC, _ := store.Get(ctx, "C")
	assert.Equal(t, task.StatusReady, gotC.Status)
	gotD, _ = store.Get(ctx, "D")
	assert.Equal(t, task.StatusBlocked, gotD.Status)

	// Complete B and C: D becomes Ready.
	require.NoError(t, store.UpdateStatus(ctx, "B", task.StatusRunning))
	require.NoError(t, coord.HandleTaskCompletion(ctx, "B", "done"))
	require.NoError(t, store.UpdateStatus(ctx, "C", task.StatusRunning))
	require.NoError(t, coord.HandleTaskCompletion(ctx, "C", "done"))
	require.NoError(t, coord.CoordinateLifecycle(ctx, "D"))

	gotD, _ = store.Get(ctx, "D")
	assert.Equal(t, task.StatusReady, gotD.Status)
}

func TestHandleTaskFailureLeavesTaskFailed(t *testing.T) {
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	tk := task.New("s", "")
	require.NoError(t, tk.MarkReady())
	require.NoError(t, tk.Start())
	_, err := store.Submit(ctx, tk)
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, tk.ID, task.StatusRunning))

	require.NoError(t, coord.HandleTaskFailure(ctx, tk.ID, errors.New("boom")))

	got, _ := store.Get(ctx, tk.ID)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestStatusUpdatesChannel(t *testing.T) {
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	a := task.New("A", "")
	a.ID = "A"
	_, err := store.Submit(ctx, a)
	require.NoError(t, err)

	require.NoError(t, coord.CoordinateLifecycle(ctx, "A"))

	select {
	case u := <-coord.StatusUpdates():
		assert.Equal(t, "A", u.TaskID)
		assert.Equal(t, task.StatusReady, u.NewStatus)
	case <-time.After(time.Second):
		t.Fatal("expected a status update")
	}
}

func TestStartRunningTransitionsReadyTask(t *testing.T) {
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	tk := task.New("s", "")
	require.NoError(t, tk.MarkReady())
	_, err := store.Submit(ctx, tk)
	require.NoError(t, err)

	require.NoError(t, coord.StartRunning(ctx, tk.ID))

	got, _ := store.Get(ctx, tk.ID)
	assert.Equal(t, task.StatusRunning, got.Status)
}

func TestStartRunningRejectsNonReadyTask(t *testing.T) {
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	tk := task.New("s", "")
	_, err := store.Submit(ctx, tk)
	require.NoError(t, err)

	err = coord.StartRunning(ctx, tk.ID)
	assert.Error(t, err)
}

func TestStartRunningBlockedByGuardrailLeavesTaskReady(t *testing.T) {
	store := taskstore.NewMemStore()
	cfg := guardrails.DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	rails := guardrails.New(cfg)
	coord := New(store, nil, WithGuardrails(rails))
	ctx := context.Background()

	first := task.New("first", "")
	require.NoError(t, first.MarkReady())
	_, err := store.Submit(ctx, first)
	require.NoError(t, err)
	require.NoError(t, coord.StartRunning(ctx, first.ID))

	second := task.New("second", "")
	require.NoError(t, second.MarkReady())
	_, err = store.Submit(ctx, second)
	require.NoError(t, err)

	err = coord.StartRunning(ctx, second.ID)
	assert.Error(t, err)

	got, _ := store.Get(ctx, second.ID)
	assert.Equal(t, task.StatusReady, got.Status)
}

func TestHandleTaskCompletionReleasesGuardrailSlot(t *testing.T) {
	store := taskstore.NewMemStore()
	cfg := guardrails.DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	rails := guardrails.New(cfg)
	audit := auditlog.NewWithDefaults()
	coord := New(store, nil, WithGuardrails(rails), WithAuditLog(audit))
	ctx := context.Background()

	tk := task.New("s", "")
	require.NoError(t, tk.MarkReady())
	_, err := store.Submit(ctx, tk)
	require.NoError(t, err)
	require.NoError(t, coord.StartRunning(ctx, tk.ID))
	require.NoError(t, coord.HandleTaskCompletion(ctx, tk.ID, "ok"))

	other := task.New("other", "")
	require.NoError(t, other.MarkReady())
	_, err = store.Submit(ctx, other)
	require.NoError(t, err)
	assert.NoError(t, coord.StartRunning(ctx, other.ID))

	history := audit.EntityHistory(tk.ID)
	assert.NotEmpty(t, history)
}

func TestGetNextReadyTaskPassthrough(t *testing.T) {
	store := taskstore.NewMemStore()
	coord := New(store, nil)
	ctx := context.Background()

	tk := task.New("s", "")
	require.NoError(t, tk.MarkReady())
	_, err := store.Submit(ctx, tk)
	require.NoError(t, err)

	got, err := coord.GetNextReadyTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tk.ID, got.ID)
}
