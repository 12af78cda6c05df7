package taskstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
)

func TestSubmitAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	tk := task.New("s", "")
	id, err := s.Submit(ctx, tk)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tk.Summary, got.Summary)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestSubmitIdempotentIsIdempotent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	key := "chain-step-1"

	a := task.New("s", "")
	a.IdempotencyKey = &key
	res1, err := s.SubmitIdempotent(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, task.Inserted, res1.Outcome)

	b := task.New("different summary", "")
	b.IdempotencyKey = &key
	res2, err := s.SubmitIdempotent(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, task.AlreadyExists, res2.Outcome)
	assert.Equal(t, res1.TaskID, res2.TaskID)

	got, err := s.Get(ctx, res1.TaskID)
	require.NoError(t, err)
	assert.Equal(t, a.Summary, got.Summary) // second submission did not mutate the row
}

func TestClaimNextReadyAtomicUnderContention(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	const readyCount = 3
	const callers = 10
	for i := 0; i < readyCount; i++ {
		tk := task.New("s", "")
		require.NoError(t, tk.MarkReady())
		_, err := s.Submit(ctx, tk)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]*task.Task, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := s.ClaimNextReady(ctx)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	claimed := make(map[string]bool)
	nilCount := 0
	for _, r := range results {
		if r == nil {
			nilCount++
			continue
		}
		assert.False(t, claimed[r.ID], "task claimed twice")
		claimed[r.ID] = true
		assert.Equal(t, task.StatusRunning, r.Status)
	}
	assert.Equal(t, readyCount, len(claimed))
	assert.Equal(t, callers-readyCount, nilCount)
}

func TestSubmitBatchTransactionalSkipsDuplicates(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	key := "dup-key"
	existing := task.New("s", "")
	existing.IdempotencyKey = &key
	_, err := s.SubmitIdempotent(ctx, existing)
	require.NoError(t, err)

	a := task.New("a", "")
	b := task.New("b", "")
	b.IdempotencyKey = &key // collides with `existing`
	c := task.New("c", "")

	res, err := s.SubmitBatchTransactional(ctx, []*task.Task{a, b, c})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, task.Inserted, res.Results[0].Outcome)
	assert.Equal(t, task.AlreadyExists, res.Results[1].Outcome)
	assert.Equal(t, task.Inserted, res.Results[2].Outcome)

	_, err = s.Get(ctx, a.ID)
	require.NoError(t, err)
	_, err = s.Get(ctx, c.ID)
	require.NoError(t, err)
}

func TestResolveDependenciesForCompletedTaskTargeted(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	a := task.New("a", "")
	a.ID = "a"
	a.Status = task.StatusCompleted
	_, err := s.Submit(ctx, a)
	require.NoError(t, err)

	b := task.New("b", "")
	b.ID = "b"
	b.Dependencies = []string{"a"}
	b.Status = task.StatusPending
	_, err = s.Submit(ctx, b)
	require.NoError(t, err)

	c := task.New("c", "")
	c.ID = "c"
	c.Dependencies = []string{"a", "x-not-done"}
	c.Status = task.StatusPending
	_, err = s.Submit(ctx, c)
	require.NoError(t, err)

	count, err := s.ResolveDependenciesForCompletedTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, _ := s.Get(ctx, "b")
	assert.Equal(t, task.StatusReady, got.Status)

	gotC, _ := s.Get(ctx, "c")
	assert.Equal(t, task.StatusPending, gotC.Status) // x-not-done never completed
}

func TestUpdateParentAndInsertChildrenAtomic(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	parent := task.New("parent", "")
	_, err := s.Submit(ctx, parent)
	require.NoError(t, err)

	fetched, err := s.Get(ctx, parent.ID)
	require.NoError(t, err)

	child1 := task.New("child1", "")
	pid := parent.ID
	child1.ParentTaskID = &pid
	child2 := task.New("child2", "")
	child2.ParentTaskID = &pid

	res, err := s.UpdateParentAndInsertChildrenAtomic(ctx, fetched, []*task.Task{child1, child2})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, res.ParentID)
	assert.Len(t, res.ChildIDs, 2)

	children, err := s.GetChildrenByParent(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	// Stale version is rejected.
	_, err = s.UpdateParentAndInsertChildrenAtomic(ctx, fetched, []*task.Task{task.New("x", "")})
	assert.ErrorIs(t, err, task.ErrDecompositionConflict)
}

func TestGetStaleRunning(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	tk := task.New("s", "")
	require.NoError(t, tk.MarkReady())
	require.NoError(t, tk.Start())
	past := *tk.StartedAt
	past = past.Add(-1 * 3600e9) // 1 hour in the past, in nanoseconds
	tk.StartedAt = &past
	_, err := s.Submit(ctx, tk)
	require.NoError(t, err)

	stale, err := s.GetStaleRunning(ctx, 60)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, tk.ID, stale[0].ID)
}
