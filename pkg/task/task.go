// Package task defines the Task domain model, its lifecycle state
// machine, and the Repository port that owns Task storage (C2).
package task

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies who submitted a task.
type Source string

const (
	SourceHuman               Source = "human"
	SourceAgentRequirements   Source = "agent-requirements"
	SourceAgentPlanner        Source = "agent-planner"
	SourceAgentImplementation Source = "agent-implementation"
)

// DependencyType controls how a task's predecessor set gates readiness.
type DependencyType string

const (
	// DependencySequential treats predecessors as a simple AND-join that
	// must all complete before the task is ready; ordering among them is
	// not otherwise significant to the resolver.
	DependencySequential DependencyType = "sequential"
	// DependencyParallel is also an AND-join; it exists as a distinct tag
	// so callers can express "these ran concurrently" intent without
	// changing resolver semantics.
	DependencyParallel DependencyType = "parallel"
)

const (
	maxSummaryLength = 140
	minBasePriority  = 0
	maxBasePriority  = 10

	defaultAgentType  = "requirements-gatherer"
	defaultPriority   = 5
	defaultMaxRetries = 3
	defaultTimeout    = 3600 * time.Second
)

// Task is the unit of work tracked by the Task Repository (C2) and driven
// through its lifecycle by the Task Coordinator (C4).
type Task struct {
	ID          string
	Summary     string // <=140 chars
	Description string

	AgentType string

	BasePriority       int
	CalculatedPriority float64

	Status Status

	Dependencies   []string // ordered predecessor task IDs
	DependencyType DependencyType
	Depth          int // memoised longest-path depth in the dependency graph

	Input  string // opaque input blob
	Result string // opaque result blob
	Error  string

	RetryCount int
	MaxRetries int

	ExecutionTimeout time.Duration

	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time

	ParentTaskID *string
	SessionID    *string

	Source Source

	Deadline          *time.Time
	EstimatedDuration *time.Duration

	WorkspacePath *string
	Branch        *string

	IdempotencyKey *string

	// Version supports optimistic concurrency on the atomic decomposition
	// operation (§6: "version or sequence numbers ... are permitted and
	// expected").
	Version int
}

// New constructs a Task with the defaults mirrored from the original
// implementation: agent_type "requirements-gatherer", priority 5,
// max_retries 3, a 1-hour timeout, and sequential dependency type.
func New(summary, description string) *Task {
	now := time.Now()
	return &Task{
		ID:               uuid.NewString(),
		Summary:          summary,
		Description:      description,
		AgentType:        defaultAgentType,
		BasePriority:     defaultPriority,
		Status:           StatusPending,
		DependencyType:   DependencySequential,
		MaxRetries:       defaultMaxRetries,
		ExecutionTimeout: defaultTimeout,
		Source:           SourceHuman,
		SubmittedAt:      now,
		UpdatedAt:        now,
		Version:          1,
	}
}

// ValidateSummary enforces the 140-character ceiling on Summary.
func (t *Task) ValidateSummary() error {
	if len(t.Summary) > maxSummaryLength {
		return &ValidationError{TaskID: t.ID, Field: "summary", Err: ErrSummaryTooLong}
	}
	return nil
}

// ValidatePriority enforces BasePriority in [0,10].
func (t *Task) ValidatePriority() error {
	if t.BasePriority < minBasePriority || t.BasePriority > maxBasePriority {
		return &ValidationError{TaskID: t.ID, Field: "base_priority", Err: ErrInvalidPriority}
	}
	return nil
}

// Validate runs every structural invariant spec.md §3 names.
func (t *Task) Validate() error {
	if err := t.ValidateSummary(); err != nil {
		return err
	}
	if err := t.ValidatePriority(); err != nil {
		return err
	}
	if t.RetryCount > t.MaxRetries {
		return &ValidationError{TaskID: t.ID, Field: "retry_count", Err: errRetryExceedsMax}
	}
	if t.CalculatedPriority != 0 && t.CalculatedPriority < float64(t.BasePriority) {
		return &ValidationError{TaskID: t.ID, Field: "calculated_priority", Err: errCalculatedBelowBase}
	}
	return nil
}

// CalculatePriority applies the depth-based boost: base priority plus half
// a point per level of dependency depth, so deeper tasks are tie-broken
// upward within the priority queue.
func (t *Task) CalculatePriority() float64 {
	return float64(t.BasePriority) + float64(t.Depth)*0.5
}

// HasDependencies reports whether the task has any listed predecessors.
func (t *Task) HasDependencies() bool {
	return len(t.Dependencies) > 0
}

// IsTerminal reports whether the task's status admits no further
// transitions.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsReady reports whether the task is in the Ready status.
func (t *Task) IsReady() bool {
	return t.Status == StatusReady
}

// IsRunning reports whether the task is in the Running status.
func (t *Task) IsRunning() bool {
	return t.Status == StatusRunning
}

// CanRetry reports whether a Failed task has retry budget remaining.
func (t *Task) CanRetry() bool {
	return t.Status == StatusFailed && t.RetryCount < t.MaxRetries
}

// IncrementRetry increments the retry counter and touches UpdatedAt.
func (t *Task) IncrementRetry() {
	t.RetryCount++
	t.UpdatedAt = time.Now()
}

// ElapsedTime returns the wall-clock duration since StartedAt, or zero if
// the task has not started.
func (t *Task) ElapsedTime() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}

// IsTimedOut reports whether the task has been Running longer than its
// ExecutionTimeout.
func (t *Task) IsTimedOut() bool {
	if t.StartedAt == nil || t.Status != StatusRunning {
		return false
	}
	return time.Since(*t.StartedAt) > t.ExecutionTimeout
}

// transition attempts to move the task to `to`, validating against the
// state machine and stamping the matching timestamp.
func (t *Task) transition(to Status) error {
	if !IsValidTransition(t.Status, to) {
		return &TransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return nil
}

// MarkReady transitions Pending/Blocked/Failed -> Ready.
func (t *Task) MarkReady() error {
	return t.transition(StatusReady)
}

// Block transitions Pending -> Blocked.
func (t *Task) Block() error {
	return t.transition(StatusBlocked)
}

// Start transitions Ready -> Running and stamps StartedAt.
func (t *Task) Start() error {
	if err := t.transition(StatusRunning); err != nil {
		return err
	}
	now := time.Now()
	t.StartedAt = &now
	return nil
}

// Complete transitions Running -> Completed, stamps CompletedAt, and stores
// the result blob.
func (t *Task) Complete(result string) error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	t.CompletedAt = &now
	t.Result = result
	return nil
}

// Fail transitions Running -> Failed and records the error message.
func (t *Task) Fail(errMsg string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.Error = errMsg
	return nil
}

// Cancel transitions any non-terminal status -> Cancelled.
func (t *Task) Cancel() error {
	return t.transition(StatusCancelled)
}
