package convergence

import (
	"math"
	"strings"
)

// BasinClassification buckets a BasinWidth score into the three bands the
// budget/policy overlay switches on.
type BasinClassification string

const (
	BasinWide     BasinClassification = "wide"
	BasinModerate BasinClassification = "moderate"
	BasinNarrow   BasinClassification = "narrow"
)

// Classify buckets a basin width score: Wide (>0.7), Moderate (>0.4),
// Narrow (<=0.4).
func Classify(width float64) BasinClassification {
	switch {
	case width > 0.7:
		return BasinWide
	case width > 0.4:
		return BasinModerate
	default:
		return BasinNarrow
	}
}

// EstimateBasinWidth scores how well-specified a submission is, in [0,1],
// starting at 0.5 with the contributions in spec.md §4.5.2.
func EstimateBasinWidth(sub TaskSubmission) float64 {
	score := 0.5

	if len(sub.AcceptanceTests) > 0 {
		score += 0.15
	}
	if len(sub.Examples) > 0 {
		score += 0.10
	}
	if len(sub.Invariants) > 0 {
		score += 0.10
	}
	if len(sub.AntiPatterns) > 0 {
		score += 0.05
	}
	if len(sub.ContextFiles) > 0 {
		score += 0.05
	}

	words := len(strings.Fields(sub.Description))
	if words < 20 {
		score -= 0.15
	} else if words > 500 {
		score -= 0.10
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// ApplyBasinWidth overlays the basin classification onto a budget and
// policy, per the exact table in spec.md §4.5.2, then applies the
// submission's priority hint (if any) last.
func ApplyBasinWidth(budget Budget, policy Policy, width float64, hint PriorityHint) (Budget, Policy) {
	switch Classify(width) {
	case BasinWide:
		budget.MaxIterations = int(float64(budget.MaxIterations) * 0.75)
		policy.ExplorationWeight = 0.2
	case BasinModerate:
		policy.ExplorationWeight = 0.4
	case BasinNarrow:
		budget.MaxIterations = int(float64(budget.MaxIterations) * 1.5)
		budget.MaxTokens = int64(float64(budget.MaxTokens) * 1.3)
		policy.ExplorationWeight = 0.6
		policy.GenerateAcceptanceTests = true
	}
	budget.originalMaxTokens = budget.MaxTokens

	switch hint {
	case PriorityHintFast:
		budget.MaxIterations = maxInt(1, int(float64(budget.MaxIterations)*0.75))
	case PriorityHintCheap:
		budget.MaxTokens = int64(float64(budget.MaxTokens) * 0.75)
		budget.originalMaxTokens = budget.MaxTokens
	case PriorityHintThorough:
		budget.MaxIterations = int(float64(budget.MaxIterations) * 1.25)
		budget.MaxTokens = int64(float64(budget.MaxTokens) * 1.25)
		budget.originalMaxTokens = budget.MaxTokens
	}
	policy.PriorityHint = hint

	return budget, policy
}

var baseIterationsByComplexity = map[Complexity]float64{
	ComplexityTrivial:  2.0,
	ComplexitySimple:   4.0,
	ComplexityModerate: 6.0,
	ComplexityComplex:  9.0,
}

// ConvergenceEstimate is the heuristic pre-execution projection used by the
// proactive-decomposition decision in spec.md §4.5.4.
type ConvergenceEstimate struct {
	ExpectedIterations float64
	ExpectedTokens     float64
	Probability        float64
}

// EstimateConvergenceHeuristic projects iteration/token cost and success
// probability from basin score and complexity, per spec.md §4.5.4:
// adjusted = base/max(score,0.05); iterations = ceil(adjusted*1.8);
// probability = score; tokens = adjusted*30000.
func EstimateConvergenceHeuristic(complexity Complexity, basinScore float64) ConvergenceEstimate {
	base := baseIterationsByComplexity[complexity]
	if base == 0 {
		base = baseIterationsByComplexity[ComplexityModerate]
	}
	denom := basinScore
	if denom < 0.05 {
		denom = 0.05
	}
	adjusted := base / denom

	return ConvergenceEstimate{
		ExpectedIterations: math.Ceil(adjusted * 1.8),
		ExpectedTokens:     adjusted * 30_000,
		Probability:        basinScore,
	}
}
