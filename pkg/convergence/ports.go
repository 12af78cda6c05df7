package convergence

import (
	"context"

	"github.com/odgrim/abathur/pkg/task"
)

// StrategyContext is everything a Strategy Executor needs to act on one
// iteration: the trajectory's current specification, infrastructure, the
// strategy chosen for this pass, the model to use, and free-form focus
// areas (spec.md §6). Engine.iterateOnce leaves Model and FocusAreas empty;
// neither pkg/modelrouter nor pkg/goals is wired into it.
type StrategyContext struct {
	TrajectoryID   string
	Strategy       StrategyKind
	Specification  Snapshot
	Infrastructure ConvergenceInfrastructure
	Model          string
	FocusAreas     []string
	Iteration      int
}

// StrategyResult is what a Strategy Executor reports back: whether it
// produced a candidate artifact, and how much budget it spent doing so.
type StrategyResult struct {
	ArtifactRef   string
	TokensSpent   int64
	Succeeded     bool
	FailureReason string
}

// StrategyExecutor is the out-of-process boundary (spec.md §6) that turns
// a chosen strategy into an actual code change. The only implementation in
// this module is the in-process fake in pkg/executor, used by tests and the
// demo wiring; there is no gRPC client.
type StrategyExecutor interface {
	Execute(ctx context.Context, sc StrategyContext) (StrategyResult, error)
}

// OverseerMeasurer is the out-of-process boundary that independently
// measures a produced artifact and reports OverseerSignals (spec.md §6).
// The only implementation in this module is the in-process fake in
// pkg/overseer, used by tests and the demo wiring; there is no gRPC client.
type OverseerMeasurer interface {
	Measure(ctx context.Context, trajectoryID, artifactRef string, policy Policy) (OverseerSignals, error)
}

// DecompositionRepository is the narrow slice of the Task Repository port
// (pkg/task) that decompose() needs: looking the parent task up and
// atomically installing its children (spec.md §4.5.9).
type DecompositionRepository interface {
	Get(ctx context.Context, id string) (*task.Task, error)
	UpdateParentAndInsertChildrenAtomic(ctx context.Context, parent *task.Task, children []*task.Task) (task.DecompositionResult, error)
}

// StrategyEffectiveness aggregates how one strategy has performed across
// recorded trajectories — bandit-priming/reporting support named in
// SPEC_FULL.md's trajectory-repository-analytics supplement.
type StrategyEffectiveness struct {
	Strategy      StrategyKind
	SuccessCount  int
	TotalCount    int
	AverageDelta  float64
	AverageTokens float64
}

// TrajectoryRepository persists trajectories and serves the analytics
// queries the original Rust port exposed beyond plain CRUD (SPEC_FULL.md
// SUPPLEMENTED FEATURES: bandit priming + reporting support).
type TrajectoryRepository interface {
	Save(ctx context.Context, t *Trajectory) error
	Get(ctx context.Context, id string) (*Trajectory, error)
	ListByTask(ctx context.Context, taskID string) ([]*Trajectory, error)

	AvgIterationsByComplexity(ctx context.Context, c Complexity) (float64, error)
	StrategyEffectivenessReport(ctx context.Context) (map[StrategyKind]StrategyEffectiveness, error)
	AttractorDistribution(ctx context.Context) (map[AttractorType]int, error)
	ConvergenceRateByTaskType(ctx context.Context, taskType string) (float64, error)
	GetSimilarTrajectories(ctx context.Context, sub TaskSubmission, limit int) ([]*Trajectory, error)
}

// MemoryRepository is the persistence port for bandit posterior state and
// success/failure recall (SPEC_FULL.md DOMAIN STACK: go-redis/miniredis
// backend, in-memory map default), mirroring gomind's Store/Retrieve/
// Delete/List Memory interface shape. Engine.finalize stores outcome
// summaries through it; the bandit posterior is not written to it.
type MemoryRepository interface {
	Store(ctx context.Context, namespace, key string, value []byte) error
	Retrieve(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]string, error)
}
