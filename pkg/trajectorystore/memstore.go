// Package trajectorystore provides an in-memory implementation of the
// convergence.TrajectoryRepository port, mirroring pkg/taskstore's
// mutex-guarded MemStore for the Task Repository.
package trajectorystore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/odgrim/abathur/pkg/convergence"
)

// ErrNotFound indicates the requested trajectory does not exist.
var ErrNotFound = errors.New("trajectory not found")

type record struct {
	trajectory *convergence.Trajectory
	seq        uint64
}

// MemStore is a process-local, mutex-guarded implementation of
// convergence.TrajectoryRepository. Like pkg/taskstore.MemStore, a single
// mutex guards the whole map; sufficient for a single process and for the
// engine's own tests and the demo cmd/abathur wiring.
type MemStore struct {
	mu      sync.Mutex
	byID    map[string]*record
	nextSeq uint64
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]*record)}
}

func clone(t *convergence.Trajectory) *convergence.Trajectory {
	cp := *t
	cp.Iterations = append([]convergence.IterationRecord(nil), t.Iterations...)
	return &cp
}

func (s *MemStore) Save(_ context.Context, t *convergence.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byID[t.ID]; ok {
		r.trajectory = clone(t)
		return nil
	}
	s.byID[t.ID] = &record{trajectory: clone(t), seq: s.nextSeq}
	s.nextSeq++
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*convergence.Trajectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r.trajectory), nil
}

func (s *MemStore) ListByTask(_ context.Context, taskID string) ([]*convergence.Trajectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*record
	for _, r := range s.byID {
		if r.trajectory.TaskID == taskID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*convergence.Trajectory, len(recs))
	for i, r := range recs {
		out[i] = clone(r.trajectory)
	}
	return out, nil
}

func (s *MemStore) AvgIterationsByComplexity(_ context.Context, c convergence.Complexity) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total, count int
	for _, r := range s.byID {
		if r.trajectory.Submission.InferredComplexity != c {
			continue
		}
		total += len(r.trajectory.Iterations)
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return float64(total) / float64(count), nil
}

func (s *MemStore) StrategyEffectivenessReport(_ context.Context) (map[convergence.StrategyKind]convergence.StrategyEffectiveness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := make(map[convergence.StrategyKind]convergence.StrategyEffectiveness)
	for _, r := range s.byID {
		for _, it := range r.trajectory.Iterations {
			eff := report[it.Strategy]
			eff.Strategy = it.Strategy
			eff.TotalCount++
			if it.Observation.ConvergenceLevel >= r.trajectory.Policy.AcceptanceThreshold {
				eff.SuccessCount++
			}
			eff.AverageDelta += deltaOrZero(it.Observation.Delta)
			report[it.Strategy] = eff
		}
	}
	for k, eff := range report {
		if eff.TotalCount > 0 {
			eff.AverageDelta /= float64(eff.TotalCount)
		}
		report[k] = eff
	}
	return report, nil
}

func deltaOrZero(d *float64) float64 {
	if d == nil {
		return 0
	}
	return *d
}

func (s *MemStore) AttractorDistribution(_ context.Context) (map[convergence.AttractorType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dist := make(map[convergence.AttractorType]int)
	for _, r := range s.byID {
		for _, it := range r.trajectory.Iterations {
			dist[it.Attractor]++
		}
	}
	return dist, nil
}

// ConvergenceRateByTaskType computes the fraction of finished trajectories
// that converged. Trajectory carries only a TaskID, not a task-type
// classifier (that lives on task.Task, owned by a different repository) —
// until a join to the Task Repository is wired in, this reports the global
// convergence rate regardless of taskType.
func (s *MemStore) ConvergenceRateByTaskType(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var finished, converged int
	for _, r := range s.byID {
		if r.trajectory.FinishedAt == nil {
			continue
		}
		finished++
		if r.trajectory.Phase == convergence.PhaseConverged {
			converged++
		}
	}
	if finished == 0 {
		return 0, nil
	}
	return float64(converged) / float64(finished), nil
}

// GetSimilarTrajectories returns up to limit trajectories ordered by how
// many acceptance tests their submission shares with sub, for bandit
// priming (SPEC_FULL.md SUPPLEMENTED FEATURES).
func (s *MemStore) GetSimilarTrajectories(_ context.Context, sub convergence.TaskSubmission, limit int) ([]*convergence.Trajectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		r     *record
		score int
	}
	wanted := make(map[string]bool, len(sub.AcceptanceTests))
	for _, at := range sub.AcceptanceTests {
		wanted[at] = true
	}

	var scoredRecs []scored
	for _, r := range s.byID {
		score := 0
		for _, at := range r.trajectory.Submission.AcceptanceTests {
			if wanted[at] {
				score++
			}
		}
		scoredRecs = append(scoredRecs, scored{r: r, score: score})
	}
	sort.Slice(scoredRecs, func(i, j int) bool {
		if scoredRecs[i].score != scoredRecs[j].score {
			return scoredRecs[i].score > scoredRecs[j].score
		}
		return scoredRecs[i].r.seq < scoredRecs[j].r.seq
	})

	if limit > 0 && len(scoredRecs) > limit {
		scoredRecs = scoredRecs[:limit]
	}
	out := make([]*convergence.Trajectory, len(scoredRecs))
	for i, sr := range scoredRecs {
		out[i] = clone(sr.r.trajectory)
	}
	return out, nil
}

var _ convergence.TrajectoryRepository = (*MemStore)(nil)
