// Package queue provides the in-memory priority queue (C1): a strict
// descending-priority ordering over tasks with FIFO tie-break within a
// priority level.
package queue

import (
	"container/heap"
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/odgrim/abathur/pkg/task"
)

const (
	minPriority = 0
	maxPriority = 10
)

// ErrInvalidPriority is returned by Enqueue when a task's base priority
// falls outside [0,10].
var ErrInvalidPriority = errors.New("priority out of range")

// InvalidPriorityError names the offending value, matching the Rust
// original's QueueError::InvalidPriority{priority, max}.
type InvalidPriorityError struct {
	Priority int
	Max      int
}

func (e *InvalidPriorityError) Error() string {
	return fmt.Sprintf("priority %d exceeds max %d", e.Priority, e.Max)
}

func (e *InvalidPriorityError) Unwrap() error { return ErrInvalidPriority }

// levelHeap is a max-heap over the distinct CalculatedPriority values
// currently holding at least one task — the Go analogue of the original's
// BTreeMap<ReversePriority, Vec<Task>> bucket keys. Its size is bounded by
// the number of distinct priority levels in use (P), not the number of
// queued tasks (N), which is what gives Enqueue/Dequeue O(log P) instead
// of O(log N).
type levelHeap []float64

func (h levelHeap) Len() int            { return len(h) }
func (h levelHeap) Less(i, j int) bool  { return h[i] > h[j] } // descending priority
func (h levelHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *levelHeap) Push(x any)         { *h = append(*h, x.(float64)) }
func (h *levelHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// entry tracks a queued task's bucket membership so Remove/Get are O(1)
// instead of a linear scan.
type entry struct {
	t        *task.Task
	priority float64
	elem     *list.Element
}

// PriorityQueue is a thread-safe, descending-priority ordered store of
// tasks with FIFO tie-break within a priority level (C1). Tasks are
// bucketed by CalculatedPriority in a FIFO list per distinct level; a
// small max-heap over the occupied levels (levelHeap) finds the highest
// priority bucket in O(log P) instead of scanning all queued tasks.
type PriorityQueue struct {
	mu      sync.Mutex
	buckets map[float64]*list.List
	levels  levelHeap
	byID    map[string]*entry
}

// New constructs an empty PriorityQueue.
func New() *PriorityQueue {
	return &PriorityQueue{
		buckets: make(map[float64]*list.List),
		byID:    make(map[string]*entry),
	}
}

// Enqueue inserts t, ordered by its CalculatedPriority (recomputed from
// BasePriority and Depth if the caller has not already set it). Rejects
// base priorities outside [0,10].
func (q *PriorityQueue) Enqueue(t *task.Task) error {
	if t.BasePriority < minPriority || t.BasePriority > maxPriority {
		return &InvalidPriorityError{Priority: t.BasePriority, Max: maxPriority}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if t.CalculatedPriority == 0 {
		t.CalculatedPriority = t.CalculatePriority()
	}

	bucket, ok := q.buckets[t.CalculatedPriority]
	if !ok {
		bucket = list.New()
		q.buckets[t.CalculatedPriority] = bucket
		heap.Push(&q.levels, t.CalculatedPriority)
	}
	elem := bucket.PushBack(t)
	q.byID[t.ID] = &entry{t: t, priority: t.CalculatedPriority, elem: elem}
	return nil
}

// topBucketLocked returns the highest-priority non-empty bucket's list, or
// nil if the queue is empty. Must be called with q.mu held.
func (q *PriorityQueue) topBucketLocked() *list.List {
	if q.levels.Len() == 0 {
		return nil
	}
	return q.buckets[q.levels[0]]
}

// dropEmptyTopLocked removes the top level from the heap (and its bucket
// map entry) once its list has been drained. Must be called with q.mu held.
func (q *PriorityQueue) dropEmptyTopLocked() {
	top := q.levels[0]
	if q.buckets[top].Len() == 0 {
		delete(q.buckets, top)
		heap.Pop(&q.levels)
	}
}

// Dequeue removes and returns the highest-priority task, or nil if the
// queue is empty.
func (q *PriorityQueue) Dequeue() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	bucket := q.topBucketLocked()
	if bucket == nil {
		return nil
	}
	front := bucket.Front()
	bucket.Remove(front)
	t := front.Value.(*task.Task)
	delete(q.byID, t.ID)
	q.dropEmptyTopLocked()
	return t
}

// Peek returns the highest-priority task without removing it, or nil if
// the queue is empty.
func (q *PriorityQueue) Peek() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	bucket := q.topBucketLocked()
	if bucket == nil {
		return nil
	}
	return bucket.Front().Value.(*task.Task)
}

// Remove removes and returns the task with the given ID, or nil if absent.
func (q *PriorityQueue) Remove(id string) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return nil
	}
	bucket := q.buckets[e.priority]
	bucket.Remove(e.elem)
	delete(q.byID, id)
	if bucket.Len() == 0 {
		delete(q.buckets, e.priority)
		for i, lvl := range q.levels {
			if lvl == e.priority {
				heap.Remove(&q.levels, i)
				break
			}
		}
	}
	return e.t
}

// Get returns the task with the given ID without removing it, or nil if
// absent.
func (q *PriorityQueue) Get(id string) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return nil
	}
	return e.t
}

// Len returns the number of tasks currently queued.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// IsEmpty reports whether the queue has no tasks.
func (q *PriorityQueue) IsEmpty() bool {
	return q.Len() == 0
}
