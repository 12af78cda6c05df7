package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
	"github.com/odgrim/abathur/pkg/taskstore"
)

func TestSweepStaleRunningRequeuesWithinRetryBudget(t *testing.T) {
	repo := taskstore.NewMemStore()
	ctx := context.Background()

	tk := task.New("stuck", "desc")
	tk.Status = task.StatusRunning
	started := time.Now().Add(-time.Hour)
	tk.StartedAt = &started
	tk.MaxRetries = 3
	id, err := repo.Submit(ctx, tk)
	require.NoError(t, err)

	svc := NewService(Config{Interval: time.Minute, StaleAfter: time.Minute}, repo)
	svc.sweepStaleRunning(ctx)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusReady, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestSweepStaleRunningLeavesExhaustedTaskFailed(t *testing.T) {
	repo := taskstore.NewMemStore()
	ctx := context.Background()

	tk := task.New("stuck", "desc")
	tk.Status = task.StatusRunning
	started := time.Now().Add(-time.Hour)
	tk.StartedAt = &started
	tk.RetryCount = 3
	tk.MaxRetries = 3
	id, err := repo.Submit(ctx, tk)
	require.NoError(t, err)

	svc := NewService(Config{Interval: time.Minute, StaleAfter: time.Minute}, repo)
	svc.sweepStaleRunning(ctx)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
}

func TestSweepStaleRunningIgnoresFreshTasks(t *testing.T) {
	repo := taskstore.NewMemStore()
	ctx := context.Background()

	tk := task.New("fresh", "desc")
	tk.Status = task.StatusRunning
	started := time.Now()
	tk.StartedAt = &started
	_, err := repo.Submit(ctx, tk)
	require.NoError(t, err)

	svc := NewService(Config{Interval: time.Minute, StaleAfter: time.Hour}, repo)
	svc.sweepStaleRunning(ctx)

	list, err := repo.GetByStatus(ctx, task.StatusRunning)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
