// Package cleanup periodically sweeps tasks that have been stuck Running
// past a staleness threshold (e.g. a worker crashed mid-execution) back
// toward Ready, within each task's own retry budget, so the Task
// Coordinator can reschedule them.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/odgrim/abathur/pkg/task"
)

// Config controls the stale-task sweep interval and threshold.
type Config struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// StaleAfter is how long a task may stay Running before it is
	// considered stale and requeued.
	StaleAfter time.Duration
}

// Service periodically requeues stale Running tasks. All operations are
// idempotent and safe to run from multiple processes, since the
// transition only fires for tasks whose StartedAt is already old enough.
type Service struct {
	cfg  Config
	repo task.Repository

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, repo task.Repository) *Service {
	return &Service{cfg: cfg, repo: repo}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"stale_after", s.cfg.StaleAfter, "interval", s.cfg.Interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweepStaleRunning(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaleRunning(ctx)
		}
	}
}

// sweepStaleRunning marks every stale Running task Failed (the only
// transition the state machine allows out of Running besides Completed/
// Cancelled), then immediately moves it back to Ready if it still has
// retry budget left, mirroring a crash-recovery retry rather than a
// terminal failure.
func (s *Service) sweepStaleRunning(ctx context.Context) {
	stale, err := s.repo.GetStaleRunning(ctx, int64(s.cfg.StaleAfter.Seconds()))
	if err != nil {
		slog.Error("Cleanup: listing stale running tasks failed", "error", err)
		return
	}

	requeued, failed := 0, 0
	for _, t := range stale {
		if err := s.repo.MarkFailed(ctx, t.ID, "stale: exceeded running threshold"); err != nil {
			slog.Error("Cleanup: mark stale task failed", "task_id", t.ID, "error", err)
			continue
		}
		t.Status = task.StatusFailed
		if !t.CanRetry() {
			failed++
			continue
		}
		t.IncrementRetry()
		if err := s.repo.Update(ctx, t); err != nil {
			slog.Error("Cleanup: record retry failed", "task_id", t.ID, "error", err)
			continue
		}
		if err := s.repo.UpdateStatus(ctx, t.ID, task.StatusReady); err != nil {
			slog.Error("Cleanup: requeue stale task failed", "task_id", t.ID, "error", err)
			continue
		}
		requeued++
	}
	if requeued > 0 || failed > 0 {
		slog.Info("Cleanup: swept stale running tasks", "requeued", requeued, "exhausted", failed)
	}
}
