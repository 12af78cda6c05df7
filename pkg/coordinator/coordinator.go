// Package coordinator implements the Task Coordinator (C4): drives a
// single task through dependency resolution, priority calculation, and
// status transitions, and cascades completion/failure to dependents. The
// coordinator holds no task state of its own — every read and write flows
// through the Task Repository (C2).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/depgraph"
	"github.com/odgrim/abathur/pkg/guardrails"
	"github.com/odgrim/abathur/pkg/task"
)

// StatusUpdate reports a task status transition, mirroring the Rust
// original's dedicated mpsc-channel notification path alongside the
// generic event contract.
type StatusUpdate struct {
	TaskID    string
	OldStatus task.Status
	NewStatus task.Status
}

// Coordinator coordinates task lifecycle, dependency resolution, and
// priority scheduling. It is stateless: concurrent calls for the same task
// serialise on the repository's own atomicity guarantees, not on any lock
// held here.
type Coordinator struct {
	repo       task.Repository
	log        *slog.Logger
	status     chan StatusUpdate
	guardrails *guardrails.Guardrails
	audit      *auditlog.Service
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithGuardrails consults g's concurrent-task registry before a task moves
// to Running, and releases it on completion/failure.
func WithGuardrails(g *guardrails.Guardrails) Option {
	return func(c *Coordinator) { c.guardrails = g }
}

// WithAuditLog records every status transition this Coordinator drives.
func WithAuditLog(a *auditlog.Service) Option {
	return func(c *Coordinator) { c.audit = a }
}

// New constructs a Coordinator with a buffered status-update channel
// (buffer size 1000, matching the original's mpsc channel sizing).
func New(repo task.Repository, log *slog.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		repo:   repo,
		log:    log,
		status: make(chan StatusUpdate, 1000),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) auditStateChange(ctx context.Context, action auditlog.Action, taskID string, from, to task.Status) {
	if c.audit == nil {
		return
	}
	c.audit.LogStateChange(ctx, auditlog.CategoryTask, action, auditlog.SystemActor(), taskID, "task", from.String(), to.String())
}

// StatusUpdates returns the receive side of the status-update channel.
// Callers that only care about status transitions (not the full event
// contract) can consume this directly.
func (c *Coordinator) StatusUpdates() <-chan StatusUpdate {
	return c.status
}

func (c *Coordinator) emitStatus(u StatusUpdate) {
	select {
	case c.status <- u:
	default:
		c.log.Warn("status update channel full, dropping", "task_id", u.TaskID)
	}
}

// CoordinateLifecycle fetches the task, re-evaluates whether its
// dependencies are met, recalculates and persists its priority, and
// transitions it between Pending/Blocked and Ready accordingly.
func (c *Coordinator) CoordinateLifecycle(ctx context.Context, taskID string) error {
	t, err := c.repo.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("coordinate lifecycle: get task: %w", err)
	}

	met, err := c.dependenciesMet(ctx, t)
	if err != nil {
		return fmt.Errorf("coordinate lifecycle: evaluate dependencies: %w", err)
	}

	newPriority := t.CalculatePriority()
	if err := c.repo.UpdatePriority(ctx, taskID, newPriority); err != nil {
		return fmt.Errorf("coordinate lifecycle: update priority: %w", err)
	}

	newStatus := task.StatusBlocked
	if met {
		newStatus = task.StatusReady
	}

	if t.Status != newStatus {
		if !task.IsValidTransition(t.Status, newStatus) {
			// Not every status admits Blocked/Ready (e.g. a Running task
			// whose dependents changed underneath it); leave it alone.
			return nil
		}
		if err := c.repo.UpdateStatus(ctx, taskID, newStatus); err != nil {
			return fmt.Errorf("coordinate lifecycle: update status: %w", err)
		}
		c.emitStatus(StatusUpdate{TaskID: taskID, OldStatus: t.Status, NewStatus: newStatus})
		c.log.Info("task transitioned", "task_id", taskID, "from", t.Status, "to", newStatus)
	}
	return nil
}

func (c *Coordinator) dependenciesMet(ctx context.Context, t *task.Task) (bool, error) {
	if !t.HasDependencies() {
		return true, nil
	}
	byID := make(map[string]*task.Task, len(t.Dependencies))
	for _, depID := range t.Dependencies {
		dep, err := c.repo.Get(ctx, depID)
		if err != nil {
			// A missing predecessor is never "met" (spec.md §4.3); surface
			// the lookup failure as not-met rather than a hard error only
			// when it is specifically NotFound.
			if err == task.ErrNotFound {
				return false, nil
			}
			return false, err
		}
		byID[depID] = dep
	}
	return depgraph.DependenciesMet(t, byID), nil
}

// GetNextReadyTask passes through to the repository's non-destructive peek.
func (c *Coordinator) GetNextReadyTask(ctx context.Context) (*task.Task, error) {
	return c.repo.GetNextReady(ctx)
}

// StartRunning transitions a Ready task to Running, consulting the
// concurrent-task guardrail first when one is configured. A blocked
// guardrail result returns an error and leaves the task Ready; the
// refusal is recorded in the audit log when one is configured.
func (c *Coordinator) StartRunning(ctx context.Context, taskID string) error {
	t, err := c.repo.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("start running: get task: %w", err)
	}
	if t.Status == task.StatusRunning {
		return nil
	}
	if !task.IsValidTransition(t.Status, task.StatusRunning) {
		return &task.TransitionError{TaskID: taskID, From: t.Status, To: task.StatusRunning}
	}

	if c.guardrails != nil {
		if res := c.guardrails.CheckAndRegisterTask(taskID); res.IsBlocked() {
			if c.audit != nil {
				c.audit.Log(ctx, auditlog.Entry{
					Level:    auditlog.LevelWarning,
					Category: auditlog.CategoryTask,
					Action:   auditlog.ActionGuardrailBlocked,
					Actor:    auditlog.SystemActor(),
					Message:  res.Reason,
				}.WithEntity(taskID, "task"))
			}
			return fmt.Errorf("start running: guardrail blocked: %s", res.Reason)
		}
	}

	if err := c.repo.UpdateStatus(ctx, taskID, task.StatusRunning); err != nil {
		if c.guardrails != nil {
			c.guardrails.RegisterTaskEnd(taskID, false)
		}
		return fmt.Errorf("start running: update status: %w", err)
	}
	c.emitStatus(StatusUpdate{TaskID: taskID, OldStatus: t.Status, NewStatus: task.StatusRunning})
	c.auditStateChange(ctx, auditlog.ActionTaskStateChanged, taskID, t.Status, task.StatusRunning)
	return nil
}

// HandleTaskCompletion marks the task Completed, then re-evaluates every
// direct dependent so those whose dependencies are now met transition to
// Ready.
func (c *Coordinator) HandleTaskCompletion(ctx context.Context, taskID, result string) error {
	t, err := c.repo.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("handle completion: get task: %w", err)
	}
	if t.Status != task.StatusCompleted {
		if !task.IsValidTransition(t.Status, task.StatusCompleted) {
			return &task.TransitionError{TaskID: taskID, From: t.Status, To: task.StatusCompleted}
		}
		if err := c.repo.UpdateStatus(ctx, taskID, task.StatusCompleted); err != nil {
			return fmt.Errorf("handle completion: update status: %w", err)
		}
		if c.guardrails != nil {
			c.guardrails.RegisterTaskEnd(taskID, true)
		}
		c.emitStatus(StatusUpdate{TaskID: taskID, OldStatus: t.Status, NewStatus: task.StatusCompleted})
		c.auditStateChange(ctx, auditlog.ActionTaskCompleted, taskID, t.Status, task.StatusCompleted)
	}

	n, err := c.repo.ResolveDependenciesForCompletedTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("handle completion: resolve dependents: %w", err)
	}
	c.log.Info("task completed, dependents resolved", "task_id", taskID, "resolved_to_ready", n)
	return nil
}

// HandleTaskFailure marks the task Failed. Retry and cascade-cancel are
// left as policy decisions outside the core (spec.md §4.4): this leaves
// the task Failed and emits the status update.
func (c *Coordinator) HandleTaskFailure(ctx context.Context, taskID string, cause error) error {
	t, err := c.repo.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("handle failure: get task: %w", err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := c.repo.MarkFailed(ctx, taskID, msg); err != nil {
		return fmt.Errorf("handle failure: mark failed: %w", err)
	}
	if c.guardrails != nil {
		c.guardrails.RegisterTaskEnd(taskID, false)
	}
	c.emitStatus(StatusUpdate{TaskID: taskID, OldStatus: t.Status, NewStatus: task.StatusFailed})
	c.auditStateChange(ctx, auditlog.ActionTaskFailed, taskID, t.Status, task.StatusFailed)
	c.log.Warn("task failed", "task_id", taskID, "error", msg)
	return nil
}
