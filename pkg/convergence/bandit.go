package convergence

import (
	"math"
	"math/rand/v2"
)

// No example repo in the retrieval pack wires a statistics or bandit
// library (see SPEC_FULL.md DOMAIN STACK); the nearest corpus precedent
// for randomness is tarsy's poll-interval jitter on math/rand/v2, so the
// Beta posterior sampler here is built directly on it.

// arm is one (strategy, attractor) pair's running Beta(alpha, beta)
// posterior over "did this strategy make progress in this situation".
type arm struct {
	alpha float64
	beta  float64
}

func newArm() arm {
	return arm{alpha: 1, beta: 1} // uniform prior
}

// StrategyBandit is a Thompson-sampling contextual bandit selecting a
// StrategyKind conditioned on the current AttractorType context (spec.md
// §4.5.5).
type StrategyBandit struct {
	arms map[StrategyKind]map[AttractorType]arm
}

// NewStrategyBandit seeds a uniform Beta(1,1) prior for every
// (strategy, attractor) pair in AllStrategies x the known attractor types.
func NewStrategyBandit() *StrategyBandit {
	b := &StrategyBandit{arms: make(map[StrategyKind]map[AttractorType]arm)}
	attractors := []AttractorType{
		AttractorFixedPoint, AttractorLimitCycle, AttractorDivergent,
		AttractorPlateau, AttractorIndeterminate,
	}
	for _, s := range AllStrategies {
		b.arms[s] = make(map[AttractorType]arm)
		for _, a := range attractors {
			b.arms[s][a] = newArm()
		}
	}
	return b
}

func (b *StrategyBandit) armFor(strategy StrategyKind, attractor AttractorType) arm {
	byAttractor, ok := b.arms[strategy]
	if !ok {
		return newArm()
	}
	a, ok := byAttractor[attractor]
	if !ok {
		return newArm()
	}
	return a
}

// Record updates the posterior for (strategy, attractor) with one trial:
// progressed=true is a success (alpha += 1), otherwise a failure
// (beta += 1).
func (b *StrategyBandit) Record(strategy StrategyKind, attractor AttractorType, progressed bool) {
	byAttractor, ok := b.arms[strategy]
	if !ok {
		byAttractor = make(map[AttractorType]arm)
		b.arms[strategy] = byAttractor
	}
	a := byAttractor[attractor]
	if a.alpha == 0 && a.beta == 0 {
		a = newArm()
	}
	if progressed {
		a.alpha++
	} else {
		a.beta++
	}
	byAttractor[attractor] = a
}

// Select picks an eligible strategy for the given attractor context. With
// probability explorationWeight (policy.ExplorationWeight, spec.md §4.5.5.2)
// it takes a UCB1-style bonus pass favoring under-tried arms; otherwise it
// draws a Thompson sample from each arm's posterior and returns the
// highest-sampling one. Returns StrategyRetryWithFeedback if eligible is
// empty, which EligibleStrategies produces once the remaining token budget
// is below every strategy's estimated cost.
func (b *StrategyBandit) Select(eligible []StrategyKind, attractor AttractorType, explorationWeight float64) StrategyKind {
	if len(eligible) == 0 {
		return StrategyRetryWithFeedback
	}

	if explorationWeight > 0 && rand.Float64() < explorationWeight {
		return b.selectUCB(eligible, attractor)
	}

	best := eligible[0]
	bestSample := -1.0
	for _, s := range eligible {
		a := b.armFor(s, attractor)
		sample := sampleBeta(a.alpha, a.beta)
		if sample > bestSample {
			bestSample = sample
			best = s
		}
	}
	return best
}

// selectUCB scores each eligible arm with an upper-confidence bound over its
// Beta posterior mean, favoring strategies this attractor context has tried
// least — the exploration half of explore/exploit spec.md §4.5.5.2 asks for.
func (b *StrategyBandit) selectUCB(eligible []StrategyKind, attractor AttractorType) StrategyKind {
	totalPlays := 1.0
	for _, s := range eligible {
		a := b.armFor(s, attractor)
		totalPlays += a.alpha + a.beta - 2
	}

	best := eligible[0]
	bestScore := -1.0
	for _, s := range eligible {
		a := b.armFor(s, attractor)
		plays := a.alpha + a.beta - 2
		mean := a.alpha / (a.alpha + a.beta)
		bonus := math.Sqrt(2 * math.Log(totalPlays) / (plays + 1))
		score := mean + bonus
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best
}

// sampleBeta draws one Beta(alpha, beta) sample via two independent
// Gamma(shape, 1) draws: X/(X+Y) ~ Beta(alpha, beta).
func sampleBeta(alpha, beta float64) float64 {
	x := sampleGamma(alpha)
	y := sampleGamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws a Gamma(shape, 1) sample via Marsaglia-Tsang (shape>=1),
// boosting sub-1 shapes by one and correcting with a uniform power draw.
func sampleGamma(shape float64) float64 {
	if shape < 1 {
		u := rand.Float64()
		return sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = rand.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rand.Float64()

		if u < 1-0.0331*(x*x*x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
