package convergence

// StrategyKind names one of the repair/refinement approaches the engine can
// dispatch to a Strategy Executor for the next iteration (spec.md §3,
// §4.5.5). RevertAndBranch's "target" and FreshStart's "carry_forward" are
// carried on Trajectory (RevertTarget is out of scope — branch/worktree
// lifecycle is an explicit external collaborator, spec.md §1 — so the kind
// alone is dispatched; CarryForward lives on Trajectory.CarryForward).
type StrategyKind string

const (
	StrategyRetryWithFeedback     StrategyKind = "retry_with_feedback"
	StrategyFocusedRepair         StrategyKind = "focused_repair"
	StrategyIncrementalRefinement StrategyKind = "incremental_refinement"
	StrategyReframe               StrategyKind = "reframe"
	StrategyAlternativeApproach   StrategyKind = "alternative_approach"
	StrategyFreshStart            StrategyKind = "fresh_start"
	StrategyDecompose             StrategyKind = "decompose"
	StrategyArchitectReview       StrategyKind = "architect_review"
	StrategyRevertAndBranch       StrategyKind = "revert_and_branch"
	StrategyRetryAugmented        StrategyKind = "retry_augmented"
)

// AllStrategies is the fixed arm set the bandit samples over.
var AllStrategies = []StrategyKind{
	StrategyRetryWithFeedback,
	StrategyFocusedRepair,
	StrategyIncrementalRefinement,
	StrategyReframe,
	StrategyAlternativeApproach,
	StrategyFreshStart,
	StrategyDecompose,
	StrategyArchitectReview,
	StrategyRevertAndBranch,
	StrategyRetryAugmented,
}

// strategyMetadata is the per-kind estimated_cost (tokens) and
// is_exploration bit spec.md §3 requires on every StrategyKind. These are
// nominal planning estimates the eligibility filter and loop control check
// against remaining budget — not measured actuals, which come back from the
// executor as StrategyResult.TokensSpent.
type strategyMetadata struct {
	estimatedCost int64
	isExploration bool
}

var strategyMeta = map[StrategyKind]strategyMetadata{
	StrategyRetryWithFeedback:     {estimatedCost: 8_000, isExploration: false},
	StrategyFocusedRepair:         {estimatedCost: 10_000, isExploration: false},
	StrategyIncrementalRefinement: {estimatedCost: 12_000, isExploration: false},
	StrategyReframe:               {estimatedCost: 15_000, isExploration: true},
	StrategyAlternativeApproach:   {estimatedCost: 20_000, isExploration: true},
	StrategyFreshStart:            {estimatedCost: 25_000, isExploration: true},
	StrategyDecompose:             {estimatedCost: 5_000, isExploration: false},
	StrategyArchitectReview:       {estimatedCost: 18_000, isExploration: false},
	StrategyRevertAndBranch:       {estimatedCost: 3_000, isExploration: false},
	StrategyRetryAugmented:        {estimatedCost: 14_000, isExploration: false},
}

// EstimatedCost returns kind's nominal token cost estimate (spec.md §3).
func EstimatedCost(kind StrategyKind) int64 { return strategyMeta[kind].estimatedCost }

// IsExploration reports whether kind is an exploratory, higher-variance
// strategy (spec.md §3). The bandit's selection does not consult it.
func IsExploration(kind StrategyKind) bool { return strategyMeta[kind].isExploration }

// Eligible reports whether a strategy can legally be chosen given the
// current attractor, fresh-start usage, and remaining token budget
// (spec.md §4.5.5.2): RetryWithFeedback is never eligible during LimitCycle,
// FreshStart respects the policy's MaxFreshStarts, RevertAndBranch needs at
// least one prior observation to revert to, Decompose is only offered once
// the trajectory is Divergent or stuck in a LimitCycle, and every strategy
// is excluded once its estimated_cost exceeds the remaining token budget.
func Eligible(kind StrategyKind, attractor AttractorType, freshStartsUsed int, policy Policy, observationCount int, remainingTokens int64) bool {
	if EstimatedCost(kind) > remainingTokens {
		return false
	}
	switch kind {
	case StrategyRetryWithFeedback:
		return attractor != AttractorLimitCycle
	case StrategyFreshStart:
		return freshStartsUsed < policy.MaxFreshStarts
	case StrategyRevertAndBranch:
		return observationCount > 0
	case StrategyDecompose:
		return attractor == AttractorDivergent || attractor == AttractorLimitCycle
	default:
		return true
	}
}

// EligibleStrategies filters AllStrategies down to those Eligible allows.
func EligibleStrategies(attractor AttractorType, freshStartsUsed int, policy Policy, observationCount int, remainingTokens int64) []StrategyKind {
	out := make([]StrategyKind, 0, len(AllStrategies))
	for _, k := range AllStrategies {
		if Eligible(k, attractor, freshStartsUsed, policy, observationCount, remainingTokens) {
			out = append(out, k)
		}
	}
	return out
}
