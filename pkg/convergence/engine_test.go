package convergence

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
)

type fakeExecutor struct {
	tokensPerCall int64
	err           error
}

func (f *fakeExecutor) Execute(ctx context.Context, sc StrategyContext) (StrategyResult, error) {
	if f.err != nil {
		return StrategyResult{}, f.err
	}
	return StrategyResult{ArtifactRef: "artifact", TokensSpent: f.tokensPerCall, Succeeded: true}, nil
}

type fakeOverseer struct {
	signals func(iteration int) OverseerSignals
}

func (f *fakeOverseer) Measure(ctx context.Context, trajectoryID, artifactRef string, policy Policy) (OverseerSignals, error) {
	return f.signals(0), nil
}

type recordingOverseer struct {
	calls int
	fn    func(call int) OverseerSignals
}

func (r *recordingOverseer) Measure(ctx context.Context, trajectoryID, artifactRef string, policy Policy) (OverseerSignals, error) {
	s := r.fn(r.calls)
	r.calls++
	return s, nil
}

type noopRepo struct{ saveErr error }

func (n *noopRepo) Save(ctx context.Context, t *Trajectory) error { return n.saveErr }
func (n *noopRepo) Get(ctx context.Context, id string) (*Trajectory, error) {
	return nil, nil
}
func (n *noopRepo) ListByTask(ctx context.Context, taskID string) ([]*Trajectory, error) {
	return nil, nil
}
func (n *noopRepo) AvgIterationsByComplexity(ctx context.Context, c Complexity) (float64, error) {
	return 0, nil
}
func (n *noopRepo) StrategyEffectivenessReport(ctx context.Context) (map[StrategyKind]StrategyEffectiveness, error) {
	return nil, nil
}
func (n *noopRepo) AttractorDistribution(ctx context.Context) (map[AttractorType]int, error) {
	return nil, nil
}
func (n *noopRepo) ConvergenceRateByTaskType(ctx context.Context, taskType string) (float64, error) {
	return 0, nil
}
func (n *noopRepo) GetSimilarTrajectories(ctx context.Context, sub TaskSubmission, limit int) ([]*Trajectory, error) {
	return nil, nil
}

type noopMemory struct{ stored map[string][]byte }

func (m *noopMemory) Store(ctx context.Context, namespace, key string, value []byte) error {
	if m.stored == nil {
		m.stored = make(map[string][]byte)
	}
	m.stored[namespace+"/"+key] = value
	return nil
}
func (m *noopMemory) Retrieve(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, ok := m.stored[namespace+"/"+key]
	return v, ok, nil
}
func (m *noopMemory) Delete(ctx context.Context, namespace, key string) error { return nil }
func (m *noopMemory) List(ctx context.Context, namespace string) ([]string, error) {
	return nil, nil
}

// fakeTaskRepo is a minimal in-memory DecompositionRepository stand-in for
// exercising decompose()'s atomic parent/children wiring.
type fakeTaskRepo struct {
	tasks map[string]*task.Task
	err   error
}

func newFakeTaskRepo(parent *task.Task) *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]*task.Task{parent.ID: parent}}
}

func (r *fakeTaskRepo) Get(ctx context.Context, id string) (*task.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, assertError{}
	}
	return t, nil
}

func (r *fakeTaskRepo) UpdateParentAndInsertChildrenAtomic(ctx context.Context, parent *task.Task, children []*task.Task) (task.DecompositionResult, error) {
	if r.err != nil {
		return task.DecompositionResult{}, r.err
	}
	r.tasks[parent.ID] = parent
	ids := make([]string, len(children))
	for i, c := range children {
		r.tasks[c.ID] = c
		ids[i] = c.ID
	}
	return task.DecompositionResult{ParentID: parent.ID, ChildIDs: ids}, nil
}

func wideSubmission() TaskSubmission {
	sub := NewTaskSubmission(repeatWord(50))
	sub.AcceptanceTests = []string{"t1"}
	sub.Examples = []string{"e1"}
	sub.Invariants = []string{"i1"}
	sub.AntiPatterns = []string{"a1"}
	sub.ContextFiles = []string{"f1"}
	sub.InferredComplexity = ComplexityTrivial
	return sub
}

func perfectSignals(int) OverseerSignals {
	return OverseerSignals{
		TestsRan: true, TestsPassed: 10, TestsTotal: 10,
		BuildRan: true, BuildSucceeded: true,
		TypeCheckRan: true, TypeCheckClean: true,
		LintRan: true, LintIssueCount: 0,
		IntentAligned: true,
	}
}

func TestEngineConvergesImmediatelyOnPerfectSignals(t *testing.T) {
	executor := &fakeExecutor{tokensPerCall: 100}
	overseer := &fakeOverseer{signals: perfectSignals}
	repo := &noopRepo{}
	mem := &noopMemory{}
	engine := NewEngine(executor, overseer, repo, mem, nil, slog.Default())

	traj := engine.Prepare(context.Background(), "task-1", wideSubmission(), DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeConverged, result.Outcome)
	assert.Equal(t, PhaseConverged, result.Trajectory.Phase)
	require.NotNil(t, result.Trajectory.FinishedAt)
	assert.Len(t, result.Trajectory.Iterations, 1)
}

func TestEngineExhaustsWhenNeverConverging(t *testing.T) {
	executor := &fakeExecutor{tokensPerCall: 0}
	overseer := &fakeOverseer{signals: func(int) OverseerSignals {
		return OverseerSignals{}
	}}
	repo := &noopRepo{}
	mem := &noopMemory{}
	engine := NewEngine(executor, overseer, repo, mem, nil, slog.Default())
	engine.Limiter.SetLimit(1_000_000) // don't let the test wait on the throttle

	traj := engine.Prepare(context.Background(), "task-2", wideSubmission(), DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, PhaseFailed, result.Trajectory.Phase)
}

func TestEnginePartialAcceptanceUpgradesExhaustedToConverged(t *testing.T) {
	traj := NewTrajectory("task-3", wideSubmission(), FromDiscovered(DiscoveredInfrastructure{}))
	traj.Policy.PartialAcceptance = true
	traj.Policy.PartialThreshold = 0.5
	obs := NewObservation(0, OverseerSignals{TestsRan: true, TestsPassed: 6, TestsTotal: 10, BuildRan: true, BuildSucceeded: true, TypeCheckRan: true, TypeCheckClean: true, IntentAligned: true}, nil, 1.0)
	traj.RecordIteration(StrategyRetryWithFeedback, AttractorIndeterminate, obs)

	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())
	result := engine.finalize(context.Background(), traj, OutcomeExhausted)

	assert.Equal(t, OutcomeConverged, result.Outcome)
}

func TestEnginePartialAcceptanceStaysExhaustedBelowThreshold(t *testing.T) {
	traj := NewTrajectory("task-4", wideSubmission(), FromDiscovered(DiscoveredInfrastructure{}))
	traj.Policy.PartialAcceptance = true
	traj.Policy.PartialThreshold = 0.9
	obs := NewObservation(0, OverseerSignals{TestsRan: true, TestsPassed: 2, TestsTotal: 10, BuildRan: true, BuildSucceeded: true, TypeCheckRan: true, TypeCheckClean: true}, nil, 1.0)
	traj.RecordIteration(StrategyRetryWithFeedback, AttractorIndeterminate, obs)

	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())
	result := engine.finalize(context.Background(), traj, OutcomeExhausted)

	assert.Equal(t, OutcomeExhausted, result.Outcome)
}

func TestEngineRepositorySaveErrorIsFatal(t *testing.T) {
	executor := &fakeExecutor{tokensPerCall: 10}
	overseer := &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}
	repo := &noopRepo{saveErr: assertError{}}
	engine := NewEngine(executor, overseer, repo, &noopMemory{}, nil, slog.Default())
	engine.Limiter.SetLimit(1_000_000)

	traj := engine.Prepare(context.Background(), "task-5", wideSubmission(), DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeBudgetDenied, result.Outcome)
}

type assertError struct{}

func (assertError) Error() string { return "save failed" }

func TestBestOutcomePrecedence(t *testing.T) {
	results := []ConvergenceResult{
		{Outcome: OutcomeTrapped},
		{Outcome: OutcomeExhausted},
		{Outcome: OutcomeConverged},
		{Outcome: OutcomeDecomposed},
	}
	assert.Equal(t, OutcomeConverged, BestOutcome(results).Outcome)
}

func TestEngineDecomposesNarrowBasinLowProbability(t *testing.T) {
	sub := NewTaskSubmission("fix it") // narrow basin, low word count
	sub.InferredComplexity = ComplexityComplex
	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())

	traj := engine.Prepare(context.Background(), "task-6", sub, DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeDecomposed, result.Outcome)
	assert.Equal(t, PhaseDecomposing, result.Trajectory.Phase)
	assert.Empty(t, result.ChildIDs, "no Tasks repository wired: decompose degrades without children")
}

func TestEngineDecomposeWithTasksRepositoryCreatesChildren(t *testing.T) {
	sub := NewTaskSubmission("fix it")
	sub.InferredComplexity = ComplexityComplex
	parent := task.New("fix it", "fix it")

	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())
	engine.Tasks = newFakeTaskRepo(parent)

	traj := engine.Prepare(context.Background(), parent.ID, sub, DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeDecomposed, result.Outcome)
	assert.Equal(t, PhaseCoordinating, result.Trajectory.Phase)
	require.Len(t, result.ChildIDs, 2)
	assert.ElementsMatch(t, result.ChildIDs, result.Trajectory.ChildTaskIDs)
}

func TestEngineDecomposeTaskLookupFailureDeniesBudget(t *testing.T) {
	sub := NewTaskSubmission("fix it")
	sub.InferredComplexity = ComplexityComplex

	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())
	engine.Tasks = &fakeTaskRepo{tasks: map[string]*task.Task{}}

	traj := engine.Prepare(context.Background(), "missing-task", sub, DiscoveredInfrastructure{})
	result := engine.Converge(context.Background(), traj)

	assert.Equal(t, OutcomeBudgetDenied, result.Outcome)
}

func TestEngineContextDegradationForcesFreshStart(t *testing.T) {
	sub := wideSubmission()
	traj := NewTrajectory("task-7", sub, FromDiscovered(DiscoveredInfrastructure{}))

	// Four iterations with monotonically worsening pass rates push the
	// trailing 3-observation window's signal-to-noise estimate below
	// contextDegradationThreshold (the first iteration's nil-delta
	// "free" signal falls outside that window).
	first := NewObservation(0, OverseerSignals{TestsRan: true, TestsPassed: 9, TestsTotal: 10}, nil, 1.0)
	traj.RecordIteration(StrategyFocusedRepair, AttractorIndeterminate, first)
	prev := &first
	for i, passed := range []int{7, 4, 1, 0} {
		obs := NewObservation(i+1, OverseerSignals{TestsRan: true, TestsPassed: passed, TestsTotal: 10}, prev, 1.0)
		traj.RecordIteration(StrategyFocusedRepair, AttractorIndeterminate, obs)
		last := traj.Iterations[len(traj.Iterations)-1].Observation
		prev = &last
	}

	engine := NewEngine(&fakeExecutor{}, &fakeOverseer{signals: func(int) OverseerSignals { return OverseerSignals{} }}, &noopRepo{}, &noopMemory{}, nil, slog.Default())
	engine.checkContextDegradation(context.Background(), traj)

	require.NotNil(t, traj.ForcedStrategy)
	assert.Equal(t, StrategyFreshStart, *traj.ForcedStrategy)
	require.NotNil(t, traj.CarryForward)
}
