package convergence

import "fmt"

// contextHealthWindow is the trailing number of observations
// estimateContextHealth inspects (spec.md §4.5.5.1: "the signal-to-noise
// estimate over recent observations").
const contextHealthWindow = 3

// contextDegradationThreshold is the signal-to-noise floor below which the
// context-health check forces a fresh start. spec.md does not name an exact
// number; 0.3 is this package's own choice and is independent of
// fixedPointEpsilon (0.02) and plateauBand (0.05).
const contextDegradationThreshold = 0.3

// CarryForward is the minimal state preserved across a forced fresh start
// (spec.md §4.5.11): the currently effective specification (so amendments
// survive), the user hints, and a derived "remaining gaps" list distilled
// from the most recent overseer signals. Observation history is
// deliberately not part of it — it is never carried into the next
// iteration's prompt.
type CarryForward struct {
	Specification  Snapshot
	UserHints      []string
	PersistentGaps []string
}

// estimateContextHealth scores the trailing window's signal-to-noise ratio
// in [0,1]: the fraction of recent deltas representing real forward
// progress (clearly positive) versus thrashing or regression. An empty
// history scores 1.0; a history shorter than contextHealthWindow is scored
// over the observations it has (contextIsDegraded ignores such histories).
func estimateContextHealth(observations []Observation) float64 {
	if len(observations) == 0 {
		return 1.0
	}
	window := observations
	if len(window) > contextHealthWindow {
		window = window[len(window)-contextHealthWindow:]
	}

	signal := 0.0
	for _, o := range window {
		switch {
		case o.Delta == nil:
			signal++ // first observation in the trajectory: no regression possible
		case *o.Delta > fixedPointEpsilon:
			signal++
		case *o.Delta < -fixedPointEpsilon:
			// regression: contributes no signal
		default:
			signal += 0.5 // flat: ambiguous, half credit
		}
	}
	return signal / float64(len(window))
}

// contextIsDegraded reports whether the context-health check (spec.md
// §4.5.5.1) should force a fresh start: the signal-to-noise estimate has
// dropped below threshold and fresh-starts remain.
func contextIsDegraded(observations []Observation, totalFreshStarts, maxFreshStarts int) bool {
	if totalFreshStarts >= maxFreshStarts {
		return false
	}
	if len(observations) < contextHealthWindow {
		return false
	}
	return estimateContextHealth(observations) < contextDegradationThreshold
}

// extractCarryForward builds the bundle a forced FreshStart carries forward
// (spec.md §4.5.11): the trajectory's effective specification, its
// submission's user hints, and the persistent gaps implied by the most
// recent overseer signals.
func extractCarryForward(t *Trajectory) CarryForward {
	return CarryForward{
		Specification:  t.Specification.Effective(),
		UserHints:      append([]string(nil), t.Submission.Hints...),
		PersistentGaps: persistentGaps(t.LastObservation()),
	}
}

// persistentGaps distills a short list of unresolved problems from the most
// recent observation's overseer signals (failing tests, build errors, type
// errors) — the three gap categories spec.md §4.5.11 names explicitly.
func persistentGaps(last *Observation) []string {
	if last == nil {
		return nil
	}
	var gaps []string
	if last.Signals.TestsRan && last.Signals.TestsFailed > 0 {
		gaps = append(gaps, fmt.Sprintf("%d failing test(s)", last.Signals.TestsFailed))
	}
	if last.Signals.BuildRan && !last.Signals.BuildSucceeded {
		gaps = append(gaps, "build failing")
	}
	if last.Signals.TypeCheckRan && !last.Signals.TypeCheckClean {
		gaps = append(gaps, "type errors present")
	}
	return gaps
}
