package convergence

import "time"

// Budget is the three-dimensional resource ceiling a trajectory consumes
// against: tokens, wall-time, and iterations (spec.md §3, §4.5.2).
type Budget struct {
	MaxTokens      int64
	TokensUsed     int64
	MaxWallTime    time.Duration
	WallTimeUsed   time.Duration
	MaxIterations  int
	IterationsUsed int

	ExtensionsRequested int
	ExtensionsGranted   int
	MaxExtensions       int

	// originalMaxTokens is retained so Extend's "raise by 30% of the
	// original" (spec.md §4.5.6) is computed from the initial allocation,
	// not the already-extended ceiling.
	originalMaxTokens int64
}

// DefaultBudget mirrors the Rust Default trait's values: 100k tokens, 30
// minutes, 5 iterations, 1 extension. Used only when a caller hasn't gone
// through AllocateBudget.
func DefaultBudget() Budget {
	b := Budget{
		MaxTokens:     100_000,
		MaxWallTime:   30 * time.Minute,
		MaxIterations: 5,
		MaxExtensions: 1,
	}
	b.originalMaxTokens = b.MaxTokens
	return b
}

type allocation struct {
	tokens        int64
	iterations    int
	wallTime      time.Duration
	maxExtensions int
}

var allocationTable = map[Complexity]allocation{
	ComplexityTrivial:  {tokens: 50_000, iterations: 3, wallTime: 15 * time.Minute, maxExtensions: 1},
	ComplexitySimple:   {tokens: 150_000, iterations: 5, wallTime: 30 * time.Minute, maxExtensions: 1},
	ComplexityModerate: {tokens: 400_000, iterations: 8, wallTime: 60 * time.Minute, maxExtensions: 1},
	ComplexityComplex:  {tokens: 1_000_000, iterations: 12, wallTime: 120 * time.Minute, maxExtensions: 3},
}

// AllocateBudget builds the initial Budget for a complexity tier, per the
// exact table in spec.md §4.5.2.
func AllocateBudget(c Complexity) Budget {
	a, ok := allocationTable[c]
	if !ok {
		a = allocationTable[ComplexityModerate]
	}
	return Budget{
		MaxTokens:         a.tokens,
		MaxWallTime:       a.wallTime,
		MaxIterations:     a.iterations,
		MaxExtensions:     a.maxExtensions,
		originalMaxTokens: a.tokens,
	}
}

// RemainingFraction is the minimum of the three per-dimension remaining
// fractions, clamped to [0,1].
func (b Budget) RemainingFraction() float64 {
	frac := func(used, max float64) float64 {
		if max <= 0 {
			return 0
		}
		f := 1 - used/max
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}

	tokenFrac := frac(float64(b.TokensUsed), float64(b.MaxTokens))
	timeFrac := frac(float64(b.WallTimeUsed), float64(b.MaxWallTime))
	iterFrac := frac(float64(b.IterationsUsed), float64(b.MaxIterations))

	min := tokenFrac
	if timeFrac < min {
		min = timeFrac
	}
	if iterFrac < min {
		min = iterFrac
	}
	return min
}

// HasRemaining reports whether any dimension still has budget left.
func (b Budget) HasRemaining() bool {
	return b.TokensUsed < b.MaxTokens &&
		b.WallTimeUsed < b.MaxWallTime &&
		b.IterationsUsed < b.MaxIterations
}

// AllowsStrategyCost reports whether estimatedCost tokens can be spent
// without immediately exceeding the token ceiling.
func (b Budget) AllowsStrategyCost(estimatedCost int64) bool {
	return b.TokensUsed+estimatedCost <= b.MaxTokens
}

// ShouldRequestExtension reports whether the budget is in the "approaching
// exhaustion but making progress" state that warrants requesting more
// (spec.md §4.5.6): less than 15% remaining, the latest delta positive,
// and extension budget not yet exhausted.
func (b Budget) ShouldRequestExtension(latestDeltaPositive bool) bool {
	return b.RemainingFraction() < 0.15 &&
		latestDeltaPositive &&
		b.ExtensionsRequested < b.MaxExtensions
}

// Consume records usage against all three dimensions for one iteration.
func (b *Budget) Consume(tokens int64, wallTime time.Duration) {
	b.TokensUsed += tokens
	b.WallTimeUsed += wallTime
	b.IterationsUsed++
}

// Extend raises the token ceiling by 30% of the original allocation and
// the iteration ceiling by 3, counted against MaxExtensions. Returns false
// if no extension budget remains.
func (b *Budget) Extend() bool {
	if b.ExtensionsGranted >= b.MaxExtensions {
		return false
	}
	b.ExtensionsRequested++
	b.ExtensionsGranted++
	b.MaxTokens += int64(float64(b.originalMaxTokens) * 0.30)
	b.MaxIterations += 3
	return true
}

// RequestExtension increments the request counter without granting —
// callers that want to observe a denial (ExtensionsGranted unchanged)
// should call this then Extend, or just call Extend directly when the
// request is always honoured up to MaxExtensions.
func (b *Budget) RequestExtension() {
	b.ExtensionsRequested++
}

// Scale produces a fresh budget for a decomposed subtask: usage counters
// reset to zero, ceilings scaled by factor, extension policy (MaxExtensions)
// inherited unchanged.
func (b Budget) Scale(factor float64) Budget {
	scaled := Budget{
		MaxTokens:     int64(float64(b.MaxTokens) * factor),
		MaxWallTime:   time.Duration(float64(b.MaxWallTime) * factor),
		MaxIterations: maxInt(1, int(float64(b.MaxIterations)*factor)),
		MaxExtensions: b.MaxExtensions,
	}
	scaled.originalMaxTokens = scaled.MaxTokens
	return scaled
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AllocateDecomposedBudget reserves 10% of the parent's budget for
// integration and distributes the remaining 90% across subtasks by their
// budgetFraction (spec.md §4.5.9). The fractions are used as given: they
// are neither checked nor renormalised to sum to 1.0.
func AllocateDecomposedBudget(parent Budget, budgetFractions []float64) []Budget {
	const distributable = 0.9
	out := make([]Budget, len(budgetFractions))
	for i, frac := range budgetFractions {
		out[i] = parent.Scale(distributable * frac)
	}
	return out
}
