// Package taskstore provides an in-memory implementation of the
// task.Repository port. MemStore is process-local and mutex-guarded; a
// durable ent/pgx-backed implementation is out of scope for this
// iteration (see DESIGN.md).
package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odgrim/abathur/pkg/task"
)

type record struct {
	task *task.Task
	seq  uint64
}

// MemStore is an in-memory implementation of task.Repository. All
// documented atomicity guarantees are provided by a single mutex guarding
// the whole map; this is sufficient for a single process and is the
// reference implementation used by the Convergence Engine's own tests and
// by the demo cmd/abathur wiring.
type MemStore struct {
	mu           sync.Mutex
	byID         map[string]*record
	byIdempotent map[string]string   // idempotency key -> task ID
	dependents   map[string][]string // task ID -> IDs of tasks that depend on it
	nextSeq      uint64
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:         make(map[string]*record),
		byIdempotent: make(map[string]string),
		dependents:   make(map[string][]string),
	}
}

func clone(t *task.Task) *task.Task {
	cp := *t
	cp.Dependencies = append([]string(nil), t.Dependencies...)
	return &cp
}

func (s *MemStore) insertLocked(t *task.Task) {
	t.Version = 1
	s.byID[t.ID] = &record{task: clone(t), seq: s.nextSeq}
	s.nextSeq++
	if t.IdempotencyKey != nil {
		s.byIdempotent[*t.IdempotencyKey] = t.ID
	}
	for _, d := range t.Dependencies {
		s.dependents[d] = append(s.dependents[d], t.ID)
	}
}

func (s *MemStore) Submit(_ context.Context, t *task.Task) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(t)
	return t.ID, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return clone(r.task), nil
}

func (s *MemStore) GetByStatus(_ context.Context, status task.Status) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t *task.Task) bool { return t.Status == status }), nil
}

func (s *MemStore) GetDependentTasks(_ context.Context, id string) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t *task.Task) bool {
		for _, d := range t.Dependencies {
			if d == id {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemStore) GetChildrenByParent(_ context.Context, parentID string) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t *task.Task) bool {
		return t.ParentTaskID != nil && *t.ParentTaskID == parentID
	}), nil
}

// filterLocked must be called with s.mu held. Results are ordered by
// insertion sequence for determinism.
func (s *MemStore) filterLocked(pred func(*task.Task) bool) []*task.Task {
	var recs []*record
	for _, r := range s.byID {
		if pred(r.task) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*task.Task, len(recs))
	for i, r := range recs {
		out[i] = clone(r.task)
	}
	return out
}

func (s *MemStore) UpdateStatus(_ context.Context, id string, status task.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return task.ErrNotFound
	}
	if !task.IsValidTransition(r.task.Status, status) {
		return &task.TransitionError{TaskID: id, From: r.task.Status, To: status}
	}
	r.task.Status = status
	r.task.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) UpdatePriority(_ context.Context, id string, priority float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return task.ErrNotFound
	}
	r.task.CalculatedPriority = priority
	r.task.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) Update(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[t.ID]
	if !ok {
		return task.ErrNotFound
	}
	s.unindexDependentsLocked(t.ID, existing.task.Dependencies)
	updated := clone(t)
	updated.UpdatedAt = time.Now()
	s.byID[t.ID].task = updated
	for _, d := range updated.Dependencies {
		s.dependents[d] = append(s.dependents[d], t.ID)
	}
	return nil
}

// unindexDependentsLocked removes id from the dependents list of every
// task it previously depended on. Must be called with s.mu held.
func (s *MemStore) unindexDependentsLocked(id string, oldDependencies []string) {
	for _, d := range oldDependencies {
		list := s.dependents[d]
		for i, dep := range list {
			if dep == id {
				s.dependents[d] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

func (s *MemStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return task.ErrNotFound
	}
	if !task.IsValidTransition(r.task.Status, task.StatusFailed) {
		return &task.TransitionError{TaskID: id, From: r.task.Status, To: task.StatusFailed}
	}
	r.task.Status = task.StatusFailed
	r.task.Error = errMsg
	r.task.UpdatedAt = time.Now()
	return nil
}

// highestPriorityReadyLocked must be called with s.mu held. It breaks ties
// on CalculatedPriority by insertion sequence (FIFO).
func (s *MemStore) highestPriorityReadyLocked() *record {
	var best *record
	for _, r := range s.byID {
		if r.task.Status != task.StatusReady {
			continue
		}
		if best == nil ||
			r.task.CalculatedPriority > best.task.CalculatedPriority ||
			(r.task.CalculatedPriority == best.task.CalculatedPriority && r.seq < best.seq) {
			best = r
		}
	}
	return best
}

func (s *MemStore) GetNextReady(_ context.Context) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.highestPriorityReadyLocked()
	if r == nil {
		return nil, nil
	}
	return clone(r.task), nil
}

func (s *MemStore) ClaimNextReady(_ context.Context) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.highestPriorityReadyLocked()
	if r == nil {
		return nil, nil
	}
	if err := r.task.Start(); err != nil {
		return nil, err
	}
	return clone(r.task), nil
}

func (s *MemStore) GetStaleRunning(_ context.Context, staleThresholdSeconds int64) ([]*task.Task, error) {
	threshold := time.Duration(staleThresholdSeconds) * time.Second
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t *task.Task) bool {
		return t.Status == task.StatusRunning && t.StartedAt != nil && time.Since(*t.StartedAt) > threshold
	}), nil
}

func (s *MemStore) ExistsByIdempotencyKey(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byIdempotent[key]
	return ok, nil
}

func (s *MemStore) GetByIdempotencyKey(_ context.Context, key string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdempotent[key]
	if !ok {
		return nil, nil
	}
	return clone(s.byID[id].task), nil
}

func (s *MemStore) SubmitIdempotent(_ context.Context, t *task.Task) (task.IdempotentInsertResult, error) {
	if err := t.Validate(); err != nil {
		return task.IdempotentInsertResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.IdempotencyKey != nil {
		if existingID, ok := s.byIdempotent[*t.IdempotencyKey]; ok {
			existing := clone(s.byID[existingID].task)
			return task.IdempotentInsertResult{
				Outcome:  task.AlreadyExists,
				TaskID:   existingID,
				Existing: existing,
			}, nil
		}
	}
	s.insertLocked(t)
	return task.IdempotentInsertResult{Outcome: task.Inserted, TaskID: t.ID}, nil
}

func (s *MemStore) SubmitBatchTransactional(_ context.Context, tasks []*task.Task) (task.BatchInsertResult, error) {
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return task.BatchInsertResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage results first; only mutate the store once every task is known
	// to be insertable or a pure duplicate, so a validation failure never
	// leaves a partial batch behind.
	results := make([]task.IdempotentInsertResult, len(tasks))
	for i, t := range tasks {
		if t.IdempotencyKey != nil {
			if existingID, ok := s.byIdempotent[*t.IdempotencyKey]; ok {
				results[i] = task.IdempotentInsertResult{
					Outcome:  task.AlreadyExists,
					TaskID:   existingID,
					Existing: clone(s.byID[existingID].task),
				}
				continue
			}
		}
		results[i] = task.IdempotentInsertResult{Outcome: task.Inserted, TaskID: t.ID}
	}

	for i, t := range tasks {
		if results[i].Outcome == task.Inserted {
			s.insertLocked(t)
		}
	}
	return task.BatchInsertResult{Results: results}, nil
}

func (s *MemStore) UpdateParentAndInsertChildrenAtomic(_ context.Context, parent *task.Task, children []*task.Task) (task.DecompositionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[parent.ID]
	if !ok {
		return task.DecompositionResult{}, task.ErrNotFound
	}
	if existing.task.Version != parent.Version {
		return task.DecompositionResult{}, task.ErrDecompositionConflict
	}
	for _, c := range children {
		if err := c.Validate(); err != nil {
			return task.DecompositionResult{}, err
		}
	}

	updatedParent := clone(parent)
	updatedParent.Version = parent.Version + 1
	updatedParent.UpdatedAt = time.Now()
	s.byID[parent.ID].task = updatedParent

	childIDs := make([]string, len(children))
	for i, c := range children {
		s.insertLocked(c)
		childIDs[i] = c.ID
	}
	return task.DecompositionResult{ParentID: parent.ID, ChildIDs: childIDs}, nil
}

// ResolveDependenciesForCompletedTask is O(k) in the direct dependents of
// completedID (spec.md §4.2), not a scan of every task in the store: the
// dependents index maintained by insertLocked/Update gives the exact
// candidate set directly.
func (s *MemStore) ResolveDependenciesForCompletedTask(_ context.Context, completedID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, depID := range s.dependents[completedID] {
		r, ok := s.byID[depID]
		if !ok {
			continue
		}
		t := r.task
		if t.Status != task.StatusPending && t.Status != task.StatusBlocked {
			continue
		}

		allMet := true
		for _, d := range t.Dependencies {
			dep, ok := s.byID[d]
			if !ok || dep.task.Status != task.StatusCompleted {
				allMet = false
				break
			}
		}
		if allMet && task.IsValidTransition(t.Status, task.StatusReady) {
			t.Status = task.StatusReady
			t.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

var _ task.Repository = (*MemStore)(nil)
