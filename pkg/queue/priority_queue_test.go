package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
)

func mk(priority int) *task.Task {
	t := task.New("s", "")
	t.BasePriority = priority
	return t
}

func TestEnqueueDequeueDescendingOrder(t *testing.T) {
	q := New()
	priorities := []int{3, 7, 1, 9, 5}
	for _, p := range priorities {
		require.NoError(t, q.Enqueue(mk(p)))
	}

	var got []int
	for !q.IsEmpty() {
		got = append(got, q.Dequeue().BasePriority)
	}
	assert.Equal(t, []int{9, 7, 5, 3, 1}, got)
}

func TestEqualPriorityFIFO(t *testing.T) {
	q := New()
	first := mk(5)
	second := mk(5)
	third := mk(5)
	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(second))
	require.NoError(t, q.Enqueue(third))

	assert.Equal(t, first.ID, q.Dequeue().ID)
	assert.Equal(t, second.ID, q.Dequeue().ID)
	assert.Equal(t, third.ID, q.Dequeue().ID)
}

func TestLenAfterEnqueuesAndDequeues(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(mk(i)))
	}
	assert.Equal(t, 5, q.Len())

	q.Dequeue()
	q.Dequeue()
	assert.Equal(t, 3, q.Len())
}

func TestPriorityBoundaries(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(mk(0)))
	require.NoError(t, q.Enqueue(mk(10)))

	err := q.Enqueue(mk(11))
	require.Error(t, err)
	var ipe *InvalidPriorityError
	assert.ErrorAs(t, err, &ipe)

	require.Error(t, q.Enqueue(mk(-1)))
}

func TestRemoveAndGet(t *testing.T) {
	q := New()
	a := mk(5)
	b := mk(8)
	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))

	assert.Equal(t, a.ID, q.Get(a.ID).ID)
	assert.Nil(t, q.Get("missing"))

	removed := q.Remove(a.ID)
	require.NotNil(t, removed)
	assert.Equal(t, a.ID, removed.ID)
	assert.Nil(t, q.Get(a.ID))
	assert.Equal(t, 1, q.Len())

	assert.Nil(t, q.Remove("missing"))
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(mk(3)))
	require.NoError(t, q.Enqueue(mk(7)))

	peeked := q.Peek()
	require.NotNil(t, peeked)
	assert.Equal(t, 7, peeked.BasePriority)
	assert.Equal(t, 2, q.Len())
}

func TestEmptyQueue(t *testing.T) {
	q := New()
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Dequeue())
	assert.Nil(t, q.Peek())
}

func TestConcurrentEnqueueDequeue(t *testing.T) {
	q := New()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(p int) {
			defer wg.Done()
			_ = q.Enqueue(mk(p % 11))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, q.Len())

	seen := 0
	for !q.IsEmpty() {
		if q.Dequeue() != nil {
			seen++
		}
	}
	assert.Equal(t, n, seen)
}

func TestPriorityDepthBoost(t *testing.T) {
	q := New()
	shallow := mk(5)
	deep := mk(5)
	deep.Depth = 4 // calculated priority 5 + 4*0.5 = 7, outranks shallow's 5
	require.NoError(t, q.Enqueue(shallow))
	require.NoError(t, q.Enqueue(deep))

	assert.Equal(t, deep.ID, q.Dequeue().ID)
	assert.Equal(t, shallow.ID, q.Dequeue().ID)
}
