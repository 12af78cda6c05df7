package services

import (
	"context"
	"log/slog"

	"github.com/odgrim/abathur/pkg/convergence"
	"github.com/odgrim/abathur/pkg/coordinator"
	"github.com/odgrim/abathur/pkg/task"
)

// TaskService is the thin validate-then-call-repository layer the HTTP
// surface drives: it owns no task or trajectory state of its own,
// delegating to the Task Repository (C2), the Task Coordinator (C4), and
// the Convergence Engine (C5).
type TaskService struct {
	repo         task.Repository
	coordinator  *coordinator.Coordinator
	engine       *convergence.Engine
	trajectories convergence.TrajectoryRepository
	log          *slog.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(
	repo task.Repository,
	coord *coordinator.Coordinator,
	engine *convergence.Engine,
	trajectories convergence.TrajectoryRepository,
	log *slog.Logger,
) *TaskService {
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{
		repo:         repo,
		coordinator:  coord,
		engine:       engine,
		trajectories: trajectories,
		log:          log,
	}
}

// Submit validates and inserts a new task, then immediately coordinates it
// so a dependency-free task lands Ready rather than sitting Pending until
// the next sweep.
func (s *TaskService) Submit(ctx context.Context, t *task.Task) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	id, err := s.repo.Submit(ctx, t)
	if err != nil {
		return "", err
	}
	if err := s.coordinator.CoordinateLifecycle(ctx, id); err != nil {
		s.log.Error("post-submit coordination failed", "task_id", id, "error", err)
	}
	return id, nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.repo.Get(ctx, id)
}

// ListByStatus returns every task in the given status.
func (s *TaskService) ListByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return s.repo.GetByStatus(ctx, status)
}

// Cancel transitions a task to Cancelled, rejecting already-terminal tasks.
func (s *TaskService) Cancel(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, &task.TransitionError{TaskID: id, From: t.Status, To: task.StatusCancelled}
	}
	if err := s.repo.UpdateStatus(ctx, id, task.StatusCancelled); err != nil {
		return nil, err
	}
	t.Status = task.StatusCancelled
	return t, nil
}

// Converge moves a Ready task to Running, drives its trajectory through
// the Convergence Engine (Prepare -> Decide -> Iterate -> Finalize), and
// reports the result. The Task Coordinator's completion/failure callbacks
// apply the outcome back onto the task's own status.
func (s *TaskService) Converge(
	ctx context.Context,
	taskID string,
	sub convergence.TaskSubmission,
	discovered convergence.DiscoveredInfrastructure,
) (convergence.ConvergenceResult, error) {
	if err := s.coordinator.StartRunning(ctx, taskID); err != nil {
		return convergence.ConvergenceResult{}, err
	}

	t := s.engine.Prepare(ctx, taskID, sub, discovered)
	result := s.engine.Converge(ctx, t)

	switch result.Outcome {
	case convergence.OutcomeConverged:
		if err := s.coordinator.HandleTaskCompletion(ctx, taskID, result.Trajectory.ID); err != nil {
			s.log.Error("convergence completion callback failed", "task_id", taskID, "error", err)
		}
	case convergence.OutcomeExhausted, convergence.OutcomeTrapped:
		if err := s.coordinator.HandleTaskFailure(ctx, taskID, errOutcome(result.Outcome)); err != nil {
			s.log.Error("convergence failure callback failed", "task_id", taskID, "error", err)
		}
	}

	return result, nil
}

func errOutcome(o convergence.Outcome) error {
	return &outcomeError{outcome: o}
}

type outcomeError struct {
	outcome convergence.Outcome
}

func (e *outcomeError) Error() string {
	return "convergence did not succeed: " + string(e.outcome)
}

// GetTrajectory returns a trajectory by ID.
func (s *TaskService) GetTrajectory(ctx context.Context, id string) (*convergence.Trajectory, error) {
	return s.trajectories.Get(ctx, id)
}

// ListTrajectoriesByTask returns every trajectory recorded against a task,
// in submission order.
func (s *TaskService) ListTrajectoriesByTask(ctx context.Context, taskID string) ([]*convergence.Trajectory, error) {
	return s.trajectories.ListByTask(ctx, taskID)
}
