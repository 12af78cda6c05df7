package convergence

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a trajectory's coarse execution stage (spec.md §4.5 PREPARE /
// CONVERGE / ITERATE_ONCE / CHECK_LOOP_CONTROL / FINALIZE flow).
type Phase string

const (
	PhasePreparing    Phase = "preparing"
	PhaseConverging   Phase = "converging"
	PhaseIterating    Phase = "iterating"
	PhaseExtending    Phase = "extending"
	PhaseDecomposing  Phase = "decomposing"
	PhaseCoordinating Phase = "coordinating"
	PhaseConverged    Phase = "converged"
	PhaseTrapped      Phase = "trapped"
	PhaseFailed       Phase = "failed"
)

// IterationRecord is one pass through ITERATE_ONCE: the strategy chosen,
// the attractor context it was chosen under, and the observation it
// produced.
type IterationRecord struct {
	Strategy    StrategyKind
	Attractor   AttractorType
	Observation Observation
}

// Trajectory is the full mutable state the convergence engine threads
// through PREPARE -> CONVERGE -> (ITERATE_ONCE -> CHECK_LOOP_CONTROL)* ->
// FINALIZE for one task (spec.md §4.5).
type Trajectory struct {
	ID             string
	TaskID         string
	Submission     TaskSubmission
	Infrastructure ConvergenceInfrastructure
	Specification  *Evolution
	Budget         Budget
	Policy         Policy
	BasinWidth     float64
	Basin          BasinClassification
	Mode           ConvergenceMode

	Phase       Phase
	Iterations  []IterationRecord
	FreshStarts int

	// ChildTaskIDs is populated once decompose() successfully splits this
	// trajectory (spec.md §4.5.9); non-empty only in PhaseCoordinating.
	ChildTaskIDs []string

	// ContextHealth is the trajectory's current signal-to-noise estimate
	// (spec.md §4.5.5.1), refreshed every iteration.
	ContextHealth float64
	// ForcedStrategy is set by the context-degradation check to pin the
	// next iteration to FreshStart regardless of what the bandit would
	// have picked (spec.md §4.5.5.1).
	ForcedStrategy *StrategyKind
	// CarryForward is the bundle preserved across a forced fresh start
	// (spec.md §4.5.11), set alongside ForcedStrategy.
	CarryForward *CarryForward

	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewTrajectory seeds a Trajectory from a submission, computing basin
// width/classification and allocating budget/policy/mode from it
// (spec.md §4.5 PREPARE).
func NewTrajectory(taskID string, sub TaskSubmission, infra ConvergenceInfrastructure) *Trajectory {
	width := EstimateBasinWidth(sub)
	classification := Classify(width)

	budget := AllocateBudget(sub.InferredComplexity)
	policy := DefaultPolicy()
	budget, policy = ApplyBasinWidth(budget, policy, width, sub.PriorityHint)

	mode := SelectConvergenceMode(classification, sub.PriorityHint, 0)

	infra.MergeUserReferences(sub)

	return &Trajectory{
		ID:             uuid.NewString(),
		TaskID:         taskID,
		Submission:     sub,
		Infrastructure: infra,
		Specification:  NewEvolution(Snapshot{Text: sub.Description}),
		Budget:         budget,
		Policy:         policy,
		BasinWidth:     width,
		Basin:          classification,
		Mode:           mode,
		Phase:          PhasePreparing,
		StartedAt:      time.Now(),
	}
}

// LastObservation returns the most recent iteration's observation, or nil
// if no iteration has completed yet.
func (t *Trajectory) LastObservation() *Observation {
	if len(t.Iterations) == 0 {
		return nil
	}
	obs := t.Iterations[len(t.Iterations)-1].Observation
	return &obs
}

// Observations flattens the recorded iterations' observations, for
// attractor classification over the trailing window.
func (t *Trajectory) Observations() []Observation {
	out := make([]Observation, len(t.Iterations))
	for i, rec := range t.Iterations {
		out[i] = rec.Observation
	}
	return out
}

// CurrentAttractor classifies the trailing window of recorded observations.
func (t *Trajectory) CurrentAttractor() AttractorType {
	return ClassifyAttractor(t.Observations(), t.Policy.AcceptanceThreshold)
}

// NewChildTrajectory seeds a trajectory for one subtask produced by
// decompose() (spec.md §4.5.9): it inherits the parent's submission,
// infrastructure, policy, basin classification and mode, and starts its
// specification fresh from whatever the parent's had evolved to by the time
// of decomposition.
func NewChildTrajectory(taskID string, parent *Trajectory, budget Budget) *Trajectory {
	return &Trajectory{
		ID:             uuid.NewString(),
		TaskID:         taskID,
		Submission:     parent.Submission,
		Infrastructure: parent.Infrastructure,
		Specification:  NewEvolution(parent.Specification.Effective()),
		Budget:         budget,
		Policy:         parent.Policy,
		BasinWidth:     parent.BasinWidth,
		Basin:          parent.Basin,
		Mode:           parent.Mode,
		Phase:          PhasePreparing,
		StartedAt:      time.Now(),
	}
}

// RecordIteration appends one ITERATE_ONCE outcome and tracks fresh-start
// usage for eligibility accounting.
func (t *Trajectory) RecordIteration(strategy StrategyKind, attractor AttractorType, obs Observation) {
	t.Iterations = append(t.Iterations, IterationRecord{
		Strategy:    strategy,
		Attractor:   attractor,
		Observation: obs,
	})
	if strategy == StrategyFreshStart {
		t.FreshStarts++
	}
}

// Finish marks the trajectory terminal with the given phase (Converged,
// Trapped, or Failed) and stamps FinishedAt.
func (t *Trajectory) Finish(phase Phase) {
	t.Phase = phase
	now := time.Now()
	t.FinishedAt = &now
}
