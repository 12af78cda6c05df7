package convergence

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/odgrim/abathur/pkg/task"
)

// EventEmitter is the generic best-effort event contract the engine fires
// against (spec.md §4.5.3/§4.5.5/§4.5.10: TrajectoryStarted,
// SpecificationAmbiguityDetected, StrategySelected, AttractorClassified,
// ContextDegradationDetected, DecompositionTriggered, and the terminal
// outcome event). A concrete adapter lives in pkg/events; event emission
// errors are never fatal (spec.md §4.5.12).
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload map[string]any)
}

// Outcome is the terminal (or Decomposed, which is non-terminal for the
// parent) result of one converge() call (spec.md §4.5.1).
type Outcome string

const (
	OutcomeConverged    Outcome = "converged"
	OutcomeExhausted    Outcome = "exhausted"
	OutcomeTrapped      Outcome = "trapped"
	OutcomeDecomposed   Outcome = "decomposed"
	OutcomeBudgetDenied Outcome = "budget_denied"
)

// outcomePrecedence orders outcomes for picking the best result across
// parallel siblings (spec.md §4.5.8).
var outcomePrecedence = map[Outcome]int{
	OutcomeConverged:    4,
	OutcomeDecomposed:   3,
	OutcomeExhausted:    2,
	OutcomeBudgetDenied: 1,
	OutcomeTrapped:      0,
}

// ConvergenceResult is what converge() returns: the outcome, the
// trajectory in its final state, and — for Decomposed — the child
// trajectory IDs.
type ConvergenceResult struct {
	Outcome    Outcome
	Trajectory *Trajectory
	ChildIDs   []string
}

// Engine drives trajectories through PREPARE -> DECIDE -> ITERATE ->
// FINALIZE (spec.md §4.5).
type Engine struct {
	Executor   StrategyExecutor
	Overseer   OverseerMeasurer
	Repository TrajectoryRepository
	Memory     MemoryRepository
	Events     EventEmitter
	Bandit     *StrategyBandit
	Limiter    *rate.Limiter
	Log        *slog.Logger
	// Tasks is the Task Repository slice decompose() needs to atomically
	// install the parent update and child task rows (spec.md §4.5.9). A
	// nil Tasks degrades decompose() to emitting its event and returning
	// OutcomeDecomposed without any child trajectories, for callers that
	// only exercise the convergence loop in isolation.
	Tasks DecompositionRepository

	// EnableProactiveDecomposition matches the engine config field of the
	// same name (SPEC_FULL.md Configuration).
	EnableProactiveDecomposition bool
}

// NewEngine wires an Engine with a default dispatch rate limiter (10
// strategy dispatches/sec, burst 5) guarding against bursts of iteration
// attempts sharing one external agent-runtime quota (SPEC_FULL.md DOMAIN
// STACK, golang.org/x/time/rate).
func NewEngine(executor StrategyExecutor, overseer OverseerMeasurer, repo TrajectoryRepository, mem MemoryRepository, events EventEmitter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		Executor:                     executor,
		Overseer:                     overseer,
		Repository:                   repo,
		Memory:                       mem,
		Events:                       events,
		Bandit:                       NewStrategyBandit(),
		Limiter:                      rate.NewLimiter(rate.Limit(10), 5),
		Log:                          log,
		EnableProactiveDecomposition: true,
	}
}

func (e *Engine) emit(ctx context.Context, eventType string, payload map[string]any) {
	if e.Events == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.Log.Warn("event emission panicked", "event", eventType, "recover", r)
		}
	}()
	e.Events.Emit(ctx, eventType, payload)
}

// Prepare is the SETUP + PREPARE step (spec.md §4.5.2/§4.5.3): builds a
// trajectory from the submission and merges discovered infrastructure with
// user-supplied references, folding constraints into the specification.
func (e *Engine) Prepare(ctx context.Context, taskID string, sub TaskSubmission, discovered DiscoveredInfrastructure) *Trajectory {
	infra := FromDiscovered(discovered)
	t := NewTrajectory(taskID, sub, infra)

	for _, invariant := range sub.Invariants {
		t.Specification.Amend(Amendment{
			Source:      SourceSubmissionConstraint,
			Description: invariant,
		})
	}

	if hasContradictingAcceptanceTests(t.Infrastructure.AcceptanceTests) {
		e.emit(ctx, "SpecificationAmbiguityDetected", map[string]any{"trajectory_id": t.ID})
	}

	e.emit(ctx, "TrajectoryStarted", map[string]any{"trajectory_id": t.ID, "task_id": taskID})
	return t
}

// hasContradictingAcceptanceTests flags acceptance tests with directly
// opposing wording ("must" vs "must not" on the same subject). Exact
// contradiction detection depends on the acceptance-test format a
// concrete strategy executor understands, which is out of the engine's
// scope (spec.md §1 — the core never parses code); this is a conservative
// textual heuristic only.
func hasContradictingAcceptanceTests(tests []string) bool {
	for i := range tests {
		for j := i + 1; j < len(tests); j++ {
			if opposingWording(tests[i], tests[j]) {
				return true
			}
		}
	}
	return false
}

func opposingWording(a, b string) bool {
	aMust, aMustNot := strings.Contains(a, "must "), strings.Contains(a, "must not")
	bMust, bMustNot := strings.Contains(b, "must "), strings.Contains(b, "must not")
	return (aMust && !aMustNot && bMustNot) || (bMust && !bMustNot && aMustNot)
}

// Converge drives a prepared trajectory through DECIDE and ITERATE to a
// terminal (or Decomposed) outcome (spec.md §4.5.1, §4.5.4-§4.5.10).
func (e *Engine) Converge(ctx context.Context, t *Trajectory) ConvergenceResult {
	t.Phase = PhaseConverging

	if t.Basin == BasinNarrow && e.EnableProactiveDecomposition {
		estimate := EstimateConvergenceHeuristic(t.Submission.InferredComplexity, t.BasinWidth)
		if int64(estimate.ExpectedTokens) > t.Budget.MaxTokens || estimate.Probability < 0.4 {
			return e.decompose(ctx, t)
		}
	}

	t.Phase = PhaseIterating
	for {
		outcome, done := e.iterateOnce(ctx, t)
		if !done {
			continue
		}
		if outcome == OutcomeDecomposed {
			return e.decompose(ctx, t)
		}
		return e.finalize(ctx, t, outcome)
	}
}

// iterateOnce performs one pass of ITERATE (spec.md §4.5.5) and then
// CHECK_LOOP_CONTROL (spec.md §4.5.6). done=true means the loop should
// stop with the returned outcome; OutcomeDecomposed is returned to Converge,
// which runs decompose(). The outcome is "" only when done is false.
func (e *Engine) iterateOnce(ctx context.Context, t *Trajectory) (Outcome, bool) {
	t.ContextHealth = estimateContextHealth(t.Observations())
	e.checkContextDegradation(ctx, t)

	attractor := t.CurrentAttractor()

	strategy := e.selectStrategy(t, attractor)
	e.emit(ctx, "StrategySelected", map[string]any{"trajectory_id": t.ID, "strategy": strategy})

	if err := e.Limiter.Wait(ctx); err != nil {
		e.Log.Warn("rate limiter wait failed, proceeding without throttle", "error", err)
	}

	sc := StrategyContext{
		TrajectoryID:   t.ID,
		Strategy:       strategy,
		Specification:  t.Specification.Effective(),
		Infrastructure: t.Infrastructure,
		Iteration:      len(t.Iterations),
	}

	result, err := e.Executor.Execute(ctx, sc)
	var tokensSpent int64
	signals := OverseerSignals{}
	if err != nil {
		// spec.md §4.5.12: executor errors become a zero-delta observation,
		// tokens still counted, loop continues.
		e.Log.Warn("strategy executor failed", "trajectory_id", t.ID, "strategy", strategy, "error", err)
	} else {
		tokensSpent = result.TokensSpent
		measured, measureErr := e.Overseer.Measure(ctx, t.ID, result.ArtifactRef, t.Policy)
		if measureErr != nil {
			e.Log.Warn("overseer measurer failed", "trajectory_id", t.ID, "error", measureErr)
		} else {
			signals = measured
		}
	}

	t.Budget.Consume(tokensSpent, 0)

	obs := NewObservation(len(t.Iterations), signals, t.LastObservation(), t.ContextHealth)
	t.RecordIteration(strategy, attractor, obs)

	e.Bandit.Record(strategy, attractor, obs.DeltaPositive())

	newAttractor := t.CurrentAttractor()
	e.emit(ctx, "AttractorClassified", map[string]any{"trajectory_id": t.ID, "attractor": newAttractor})

	if e.Repository != nil {
		if saveErr := e.Repository.Save(ctx, t); saveErr != nil {
			// spec.md §4.5.12: repository errors are fatal.
			e.Log.Error("trajectory save failed", "trajectory_id", t.ID, "error", saveErr)
			return OutcomeBudgetDenied, true
		}
	}

	return e.checkLoopControl(t, newAttractor)
}

// checkContextDegradation implements ITERATE step 1 (spec.md §4.5.5.1): if
// the signal-to-noise estimate has dropped below threshold and fresh-starts
// remain, pin the next strategy selection to FreshStart with a carry-forward
// bundle and emit ContextDegradationDetected.
func (e *Engine) checkContextDegradation(ctx context.Context, t *Trajectory) {
	if !contextIsDegraded(t.Observations(), t.FreshStarts, t.Policy.MaxFreshStarts) {
		return
	}
	cf := extractCarryForward(t)
	forced := StrategyFreshStart
	t.ForcedStrategy = &forced
	t.CarryForward = &cf
	e.emit(ctx, "ContextDegradationDetected", map[string]any{
		"trajectory_id":      t.ID,
		"health_score":       t.ContextHealth,
		"fresh_start_number": t.FreshStarts + 1,
	})
}

func (e *Engine) selectStrategy(t *Trajectory, attractor AttractorType) StrategyKind {
	if t.ForcedStrategy != nil {
		forced := *t.ForcedStrategy
		t.ForcedStrategy = nil
		return forced
	}
	remaining := t.Budget.MaxTokens - t.Budget.TokensUsed
	eligible := EligibleStrategies(attractor, t.FreshStarts, t.Policy, len(t.Iterations), remaining)
	return e.Bandit.Select(eligible, attractor, t.Policy.ExplorationWeight)
}

// checkLoopControl implements spec.md §4.5.6's priority-ordered table.
func (e *Engine) checkLoopControl(t *Trajectory, attractor AttractorType) (Outcome, bool) {
	last := t.LastObservation()
	deltaPositive := last != nil && last.DeltaPositive()

	if !t.Budget.HasRemaining() {
		if attractor == AttractorFixedPoint && deltaPositive && t.Budget.Extend() {
			return "", false
		}
		return OutcomeExhausted, true
	}

	if last != nil && last.ConvergenceLevel >= t.Policy.AcceptanceThreshold && allSignalsPassing(last.Signals) {
		return OutcomeConverged, true
	}

	remaining := t.Budget.MaxTokens - t.Budget.TokensUsed

	if attractor == AttractorLimitCycle {
		eligible := EligibleStrategies(attractor, t.FreshStarts, t.Policy, len(t.Iterations), remaining)
		if len(eligible) == 0 {
			return OutcomeTrapped, true
		}
	}

	if attractor == AttractorDivergent && lastDeltasBelow(t, 3, -0.05) && t.Budget.AllowsStrategyCost(EstimatedCost(StrategyDecompose)) {
		return OutcomeDecomposed, true
	}

	if t.Budget.ShouldRequestExtension(deltaPositive) {
		if t.Budget.Extend() {
			return "", false
		}
		return OutcomeBudgetDenied, true
	}

	return "", false
}

// allSignalsPassing implements the Converged check's "all present overseer
// signals passing" (spec.md §4.5.6): an overseer that didn't run imposes no
// requirement.
func allSignalsPassing(s OverseerSignals) bool {
	if s.TestsRan && s.TestsFailed != 0 {
		return false
	}
	if s.BuildRan && !s.BuildSucceeded {
		return false
	}
	if s.TypeCheckRan && !s.TypeCheckClean {
		return false
	}
	if s.LintRan && s.LintIssueCount > 0 {
		return false
	}
	return true
}

func lastDeltasBelow(t *Trajectory, n int, threshold float64) bool {
	if len(t.Iterations) < n {
		return false
	}
	recent := t.Iterations[len(t.Iterations)-n:]
	for _, rec := range recent {
		if rec.Observation.Delta == nil || *rec.Observation.Delta >= threshold {
			return false
		}
	}
	return true
}

// partialAcceptance implements spec.md §4.5.7: on Exhausted with
// partial_acceptance enabled, accept the best observation if it clears
// partial_threshold.
func (e *Engine) partialAcceptance(t *Trajectory) Outcome {
	if !t.Policy.PartialAcceptance {
		return OutcomeExhausted
	}
	best := bestObservation(t)
	if best != nil && best.ConvergenceLevel >= t.Policy.PartialThreshold {
		return OutcomeConverged
	}
	return OutcomeExhausted
}

func bestObservation(t *Trajectory) *Observation {
	var best *Observation
	for i := range t.Iterations {
		obs := t.Iterations[i].Observation
		if best == nil || obs.ConvergenceLevel > best.ConvergenceLevel {
			best = &obs
		}
	}
	return best
}

// decompose implements spec.md §4.5.9: propose subtasks, split the budget,
// create child trajectories, atomically persist the parent/children split,
// and transition the parent into Coordinating.
func (e *Engine) decompose(ctx context.Context, t *Trajectory) ConvergenceResult {
	t.Phase = PhaseDecomposing

	if e.Tasks == nil {
		// No task repository wired: degrade to reporting the decomposition
		// without actually splitting work (e.g. the convergence loop
		// exercised on its own, outside the task-coordination stack).
		e.emit(ctx, "DecompositionTriggered", map[string]any{"trajectory_id": t.ID})
		return ConvergenceResult{Outcome: OutcomeDecomposed, Trajectory: t}
	}

	parentTask, err := e.Tasks.Get(ctx, t.TaskID)
	if err != nil {
		e.Log.Error("decompose: parent task lookup failed", "trajectory_id", t.ID, "task_id", t.TaskID, "error", err)
		return e.finalize(ctx, t, OutcomeBudgetDenied)
	}

	proposals := planPlaceholderChildren(t)
	budgets := AllocateDecomposedBudget(t.Budget, budgetFractionsOf(proposals))

	children := make([]*task.Task, len(proposals))
	childTrajectories := make([]*Trajectory, len(proposals))
	for i, p := range proposals {
		child := task.New(p.summary, p.description)
		child.Source = task.SourceAgentPlanner
		child.ParentTaskID = &t.TaskID
		children[i] = child
		childTrajectories[i] = NewChildTrajectory(child.ID, t, budgets[i])
	}

	result, err := e.Tasks.UpdateParentAndInsertChildrenAtomic(ctx, parentTask, children)
	if err != nil {
		e.Log.Error("decompose: atomic parent/children update failed", "trajectory_id", t.ID, "error", err)
		return e.finalize(ctx, t, OutcomeBudgetDenied)
	}

	t.ChildTaskIDs = result.ChildIDs
	t.Phase = PhaseCoordinating

	if e.Repository != nil {
		for _, child := range childTrajectories {
			if saveErr := e.Repository.Save(ctx, child); saveErr != nil {
				e.Log.Warn("decompose: child trajectory save failed", "trajectory_id", child.ID, "error", saveErr)
			}
		}
		if saveErr := e.Repository.Save(ctx, t); saveErr != nil {
			e.Log.Warn("decompose: parent trajectory save failed", "trajectory_id", t.ID, "error", saveErr)
		}
	}

	e.emit(ctx, "DecompositionTriggered", map[string]any{
		"trajectory_id": t.ID,
		"parent_id":     result.ParentID,
		"child_ids":     result.ChildIDs,
	})

	return ConvergenceResult{Outcome: OutcomeDecomposed, Trajectory: t, ChildIDs: result.ChildIDs}
}

// subtaskProposal is one proposed child of a decomposition (spec.md §4.5.9:
// "2+ subtasks whose budget_fraction sums to 1.0").
type subtaskProposal struct {
	summary        string
	description    string
	budgetFraction float64
}

// planPlaceholderChildren proposes a naive 50/50 two-way split of the
// parent's description. The original Rust propose_decomposition itself
// hardcodes exactly two subtasks at an even budget_fraction with "Part 1
// of:"/"Part 2 of:" naming (no actual planning agent) — real subtask
// proposal is an external strategy-executor concern (spec.md §1: the core
// never writes code), so this mirrors that same naive placeholder rather
// than inventing a planning heuristic the spec doesn't describe.
func planPlaceholderChildren(t *Trajectory) []subtaskProposal {
	desc := t.Specification.Effective().Text
	return []subtaskProposal{
		{summary: truncateSummary("Part 1 of: " + desc), description: desc, budgetFraction: 0.5},
		{summary: truncateSummary("Part 2 of: " + desc), description: desc, budgetFraction: 0.5},
	}
}

func budgetFractionsOf(proposals []subtaskProposal) []float64 {
	out := make([]float64, len(proposals))
	for i, p := range proposals {
		out[i] = p.budgetFraction
	}
	return out
}

const maxTaskSummaryLength = 140

// truncateSummary clamps to task.Task's 140-character Summary ceiling.
func truncateSummary(s string) string {
	if len(s) <= maxTaskSummaryLength {
		return s
	}
	return s[:maxTaskSummaryLength]
}

// finalize implements spec.md §4.5.10: resolve Exhausted via partial
// acceptance, emit the terminal event, persist a recall-memory summary of
// the outcome, save the trajectory. The bandit's posterior state is not
// written to memory; it lives only in Engine.Bandit.
func (e *Engine) finalize(ctx context.Context, t *Trajectory, outcome Outcome) ConvergenceResult {
	if outcome == OutcomeExhausted {
		outcome = e.partialAcceptance(t)
	}

	phase := PhaseFailed
	switch outcome {
	case OutcomeConverged:
		phase = PhaseConverged
	case OutcomeTrapped:
		phase = PhaseTrapped
	}
	t.Finish(phase)

	e.emit(ctx, "TrajectoryFinished", map[string]any{"trajectory_id": t.ID, "outcome": outcome})

	if e.Memory != nil {
		e.persistMemory(ctx, t, outcome)
	}
	if e.Repository != nil {
		if err := e.Repository.Save(ctx, t); err != nil {
			e.Log.Error("final trajectory save failed", "trajectory_id", t.ID, "error", err)
		}
	}

	return ConvergenceResult{Outcome: outcome, Trajectory: t}
}

func (e *Engine) persistMemory(ctx context.Context, t *Trajectory, outcome Outcome) {
	key := t.TaskID
	var summary string
	if outcome == OutcomeConverged {
		summary = "strategies:" + strategiesUsed(t) + ";attractors:" + attractorsSeen(t)
	} else {
		summary = "gaps:" + strings.Join(t.Specification.Effective().AntiPatterns, "|")
	}
	if err := e.Memory.Store(ctx, "trajectory_outcomes", key, []byte(summary)); err != nil {
		e.Log.Warn("memory persist failed", "task_id", key, "error", err)
	}
}

func attractorsSeen(t *Trajectory) string {
	out := make([]string, len(t.Iterations))
	for i, rec := range t.Iterations {
		out[i] = string(rec.Attractor)
	}
	return strings.Join(out, ",")
}

func strategiesUsed(t *Trajectory) string {
	out := make([]string, len(t.Iterations))
	for i, rec := range t.Iterations {
		out[i] = string(rec.Strategy)
	}
	return strings.Join(out, ",")
}

// BestOutcome picks the best result across N parallel sibling trajectories
// by the precedence in spec.md §4.5.8.
func BestOutcome(results []ConvergenceResult) ConvergenceResult {
	best := results[0]
	for _, r := range results[1:] {
		if outcomePrecedence[r.Outcome] > outcomePrecedence[best.Outcome] {
			best = r
		}
	}
	return best
}
