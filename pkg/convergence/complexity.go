package convergence

// Complexity is the submission's inferred size/difficulty, driving initial
// budget allocation (spec.md §4.5.2).
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// PriorityHint biases budget/policy overlays toward speed, cost, or
// thoroughness (spec.md §3 ConvergencePolicy, §4.5.2).
type PriorityHint string

const (
	PriorityHintNone     PriorityHint = ""
	PriorityHintFast     PriorityHint = "fast"
	PriorityHintCheap    PriorityHint = "cheap"
	PriorityHintThorough PriorityHint = "thorough"
)
