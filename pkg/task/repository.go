package task

import "context"

// IdempotentInsertOutcome distinguishes a fresh insert from a collision on
// an existing idempotency key.
type IdempotentInsertOutcome int

const (
	Inserted IdempotentInsertOutcome = iota
	AlreadyExists
)

// IdempotentInsertResult is the outcome of SubmitIdempotent.
type IdempotentInsertResult struct {
	Outcome  IdempotentInsertOutcome
	TaskID   string
	Existing *Task // populated when Outcome == AlreadyExists
}

// BatchInsertResult is the per-task outcome of SubmitBatchTransactional.
type BatchInsertResult struct {
	Results []IdempotentInsertResult
}

// DecompositionResult is the outcome of UpdateParentAndInsertChildrenAtomic.
type DecompositionResult struct {
	ParentID string
	ChildIDs []string
}

// Repository is the Task Repository port (C2). Every method documented as
// atomic must be atomic with respect to concurrent callers; see spec.md §4.2
// and the testable properties in spec.md §8.
type Repository interface {
	Submit(ctx context.Context, t *Task) (string, error)
	Get(ctx context.Context, id string) (*Task, error)
	GetByStatus(ctx context.Context, status Status) ([]*Task, error)
	GetDependentTasks(ctx context.Context, id string) ([]*Task, error)
	GetChildrenByParent(ctx context.Context, parentID string) ([]*Task, error)

	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdatePriority(ctx context.Context, id string, priority float64) error
	Update(ctx context.Context, t *Task) error

	MarkFailed(ctx context.Context, id string, errMsg string) error

	// GetNextReady returns the highest-priority Ready task without
	// claiming it.
	GetNextReady(ctx context.Context) (*Task, error)

	// ClaimNextReady atomically selects the highest-priority Ready task
	// and transitions it to Running in one step, so concurrent callers
	// never observe the same task (spec.md §8, S3).
	ClaimNextReady(ctx context.Context) (*Task, error)

	// GetStaleRunning returns tasks that have been Running longer than
	// staleThresholdSeconds since StartedAt.
	GetStaleRunning(ctx context.Context, staleThresholdSeconds int64) ([]*Task, error)

	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Task, error)

	// SubmitIdempotent atomically inserts unless a task with the same
	// idempotency key already exists.
	SubmitIdempotent(ctx context.Context, t *Task) (IdempotentInsertResult, error)

	// SubmitBatchTransactional inserts every task in a single transaction;
	// any non-duplicate failure rolls back the entire batch.
	SubmitBatchTransactional(ctx context.Context, tasks []*Task) (BatchInsertResult, error)

	// UpdateParentAndInsertChildrenAtomic updates the parent and inserts
	// its children as one unit of work. On version conflict no children
	// are inserted; if any child insert fails the parent update rolls
	// back.
	UpdateParentAndInsertChildrenAtomic(ctx context.Context, parent *Task, children []*Task) (DecompositionResult, error)

	// ResolveDependenciesForCompletedTask transitions every direct
	// dependent of completedID whose other predecessors are all Completed
	// to Ready, and returns the count transitioned. O(k) in the number of
	// direct dependents, not a global scan.
	ResolveDependenciesForCompletedTask(ctx context.Context, completedID string) (int, error)
}
