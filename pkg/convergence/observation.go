package convergence

// OverseerSignals is the raw, strategy-agnostic feedback an Overseer
// Measurer reports for one iteration (spec.md §3 Observation). Each
// overseer's Ran flag records whether it executed at all: false means it
// was skipped (e.g. by policy.SkipExpensiveOverseers) and its result fields
// are meaningless zero values, not a failing result — computeMetrics and
// convergenceLevel must renormalise over only the overseers that ran
// (spec.md §3, §4.5.5.5). TestsRan mirrors the others rather than relying
// on TestsTotal==0 alone, so a zero-test suite that genuinely ran is
// distinguishable from a skipped test overseer.
type OverseerSignals struct {
	TestsRan     bool
	TestsPassed  int
	TestsFailed  int
	TestsTotal   int

	BuildRan       bool
	BuildSucceeded bool

	TypeCheckRan   bool
	TypeCheckClean bool

	LintRan        bool
	LintIssueCount int

	// IntentAligned is an adapter-specific extra signal (spec.md §3:
	// OverseerSignals carries "adapter-specific fields" beyond the four
	// named overseers); it does not enter the convergence_level formula.
	IntentAligned bool

	NewInvariantsFound   []string
	NewAntiPatternsFound []string
	Notes                string
}

// ObservationMetrics are the derived, comparable numbers computed from raw
// signals — what ConvergenceLevel and Delta are built from. A metric's
// value is only meaningful when the corresponding signal ran; absent ones
// are left at zero and excluded from convergenceLevel's weighted sum.
type ObservationMetrics struct {
	TestPassRate    float64 // in [0,1]
	BuildHealth     float64 // 1.0 if the build succeeded, else 0.0
	TypeCheckHealth float64 // 1.0 if type-checking was clean, else 0.0
	LintScore       float64 // 1.0 at zero issues, decaying toward 0
}

func computeMetrics(s OverseerSignals) ObservationMetrics {
	var m ObservationMetrics
	if s.TestsRan && s.TestsTotal > 0 {
		m.TestPassRate = float64(s.TestsPassed) / float64(s.TestsTotal)
	}
	if s.BuildRan && s.BuildSucceeded {
		m.BuildHealth = 1.0
	}
	if s.TypeCheckRan && s.TypeCheckClean {
		m.TypeCheckHealth = 1.0
	}
	if s.LintRan {
		m.LintScore = 1.0 / (1.0 + float64(s.LintIssueCount)*0.1)
	}
	return m
}

// convergenceLevelWeights is spec.md §4.5.5's stated default, taken
// verbatim: 0.4 test_pass_ratio + 0.3 build_ok + 0.2 typecheck_ok +
// 0.1 lint_ok, renormalised over whichever of the four actually ran.
var convergenceLevelWeights = struct {
	tests, build, typecheck, lint float64
}{tests: 0.4, build: 0.3, typecheck: 0.2, lint: 0.1}

func convergenceLevel(s OverseerSignals, m ObservationMetrics) float64 {
	w := convergenceLevelWeights

	var sum, totalWeight float64
	if s.TestsRan {
		sum += m.TestPassRate * w.tests
		totalWeight += w.tests
	}
	if s.BuildRan {
		sum += m.BuildHealth * w.build
		totalWeight += w.build
	}
	if s.TypeCheckRan {
		sum += m.TypeCheckHealth * w.typecheck
		totalWeight += w.typecheck
	}
	if s.LintRan {
		sum += m.LintScore * w.lint
		totalWeight += w.lint
	}
	if totalWeight == 0 {
		return 0
	}

	level := sum / totalWeight
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return level
}

// Observation is one iteration's recorded outcome: the raw signals, the
// derived metrics, the scalar convergence_level, and its delta against the
// previous observation in the trajectory (nil for the first iteration).
type Observation struct {
	Iteration        int
	Signals          OverseerSignals
	Metrics          ObservationMetrics
	ConvergenceLevel float64
	Delta            *float64
}

// NewObservation builds an Observation from raw overseer signals, computing
// its convergence_level and delta against the previous observation (nil if
// this is the first). contextHealth is the trajectory's current
// signal-to-noise estimate (spec.md §3); when it has dropped below
// contextDegradationThreshold the delta is adjusted downward, reflecting
// that progress measured against a degraded context is less trustworthy
// (spec.md §4.5.5.5 "adjusted downward by context-health degradation").
func NewObservation(iteration int, signals OverseerSignals, previous *Observation, contextHealth float64) Observation {
	metrics := computeMetrics(signals)
	level := convergenceLevel(signals, metrics)

	obs := Observation{
		Iteration:        iteration,
		Signals:          signals,
		Metrics:          metrics,
		ConvergenceLevel: level,
	}

	if previous != nil {
		delta := level - previous.ConvergenceLevel
		if contextHealth < contextDegradationThreshold {
			delta -= contextDegradationThreshold - contextHealth
		}
		obs.Delta = &delta
	}

	return obs
}

// DeltaPositive reports whether this observation improved over the
// previous one. The first observation in a trajectory (Delta == nil) is
// treated as positive progress — there is nothing to regress against yet.
func (o Observation) DeltaPositive() bool {
	if o.Delta == nil {
		return true
	}
	return *o.Delta > 0
}
