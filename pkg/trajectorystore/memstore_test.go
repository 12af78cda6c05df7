package trajectorystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/convergence"
)

func newTestTrajectory(taskID string, complexity convergence.Complexity) *convergence.Trajectory {
	sub := convergence.NewTaskSubmission("do the thing")
	sub.InferredComplexity = complexity
	infra := convergence.ConvergenceInfrastructure{}
	return convergence.NewTrajectory(taskID, sub, infra)
}

func TestSaveAndGet(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	traj := newTestTrajectory("task-1", convergence.ComplexityModerate)

	require.NoError(t, store.Save(ctx, traj))

	got, err := store.Get(ctx, traj.ID)
	require.NoError(t, err)
	assert.Equal(t, traj.TaskID, got.TaskID)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByTask(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	a := newTestTrajectory("task-1", convergence.ComplexitySimple)
	b := newTestTrajectory("task-1", convergence.ComplexitySimple)
	c := newTestTrajectory("task-2", convergence.ComplexitySimple)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))
	require.NoError(t, store.Save(ctx, c))

	list, err := store.ListByTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAvgIterationsByComplexity(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	traj := newTestTrajectory("task-1", convergence.ComplexityComplex)
	traj.RecordIteration(convergence.StrategyRetryWithFeedback, convergence.AttractorFixedPoint, convergence.Observation{Iteration: 1})
	traj.RecordIteration(convergence.StrategyIncrementalRefinement, convergence.AttractorFixedPoint, convergence.Observation{Iteration: 2})
	require.NoError(t, store.Save(ctx, traj))

	avg, err := store.AvgIterationsByComplexity(ctx, convergence.ComplexityComplex)
	require.NoError(t, err)
	assert.Equal(t, 2.0, avg)

	avg, err = store.AvgIterationsByComplexity(ctx, convergence.ComplexityTrivial)
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestAttractorDistribution(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	traj := newTestTrajectory("task-1", convergence.ComplexitySimple)
	traj.RecordIteration(convergence.StrategyRetryWithFeedback, convergence.AttractorFixedPoint, convergence.Observation{})
	traj.RecordIteration(convergence.StrategyRetryWithFeedback, convergence.AttractorLimitCycle, convergence.Observation{})
	require.NoError(t, store.Save(ctx, traj))

	dist, err := store.AttractorDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dist[convergence.AttractorFixedPoint])
	assert.Equal(t, 1, dist[convergence.AttractorLimitCycle])
}

func TestConvergenceRateByTaskType(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	converged := newTestTrajectory("task-1", convergence.ComplexitySimple)
	converged.Finish(convergence.PhaseConverged)
	failed := newTestTrajectory("task-2", convergence.ComplexitySimple)
	failed.Finish(convergence.PhaseFailed)
	unfinished := newTestTrajectory("task-3", convergence.ComplexitySimple)

	require.NoError(t, store.Save(ctx, converged))
	require.NoError(t, store.Save(ctx, failed))
	require.NoError(t, store.Save(ctx, unfinished))

	rate, err := store.ConvergenceRateByTaskType(ctx, "whatever")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rate)
}

func TestGetSimilarTrajectoriesOrdersByOverlap(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	a := newTestTrajectory("task-1", convergence.ComplexitySimple)
	a.Submission.AcceptanceTests = []string{"t1", "t2"}
	b := newTestTrajectory("task-2", convergence.ComplexitySimple)
	b.Submission.AcceptanceTests = []string{"t1"}
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	query := convergence.TaskSubmission{AcceptanceTests: []string{"t1", "t2", "t3"}}
	similar, err := store.GetSimilarTrajectories(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, a.ID, similar[0].ID)
}
