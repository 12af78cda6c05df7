package convergence

// Policy holds the tunables that govern acceptance, exploration, and
// escape-hatch behaviour for one trajectory (spec.md §3 ConvergencePolicy).
type Policy struct {
	AcceptanceThreshold float64 // in [0,1]

	PartialAcceptance bool
	PartialThreshold  float64

	ExplorationWeight float64 // in [0,1]

	MaxFreshStarts int

	IntentVerificationFrequency int

	GenerateAcceptanceTests bool
	SkipExpensiveOverseers  bool

	PriorityHint PriorityHint
}

// DefaultPolicy matches the teacher/ecosystem convention of providing a
// conservative, broadly-applicable starting point that callers override
// via config (pkg/config) rather than hand-constructing every field.
func DefaultPolicy() Policy {
	return Policy{
		AcceptanceThreshold:         0.9,
		PartialAcceptance:           true,
		PartialThreshold:            0.75,
		ExplorationWeight:           0.3,
		MaxFreshStarts:              2,
		IntentVerificationFrequency: 3,
		GenerateAcceptanceTests:     false,
		SkipExpensiveOverseers:      false,
		PriorityHint:                PriorityHintNone,
	}
}

// ConvergenceMode selects sequential vs. parallel sampling for the ITERATE
// phase (spec.md §4.5.4).
type ConvergenceMode struct {
	Parallel       bool
	InitialSamples int // only meaningful when Parallel
}

// SelectConvergenceMode implements the exact basin x priority-hint table
// in spec.md §4.5.4. A user-supplied override (userSamples > 0) always
// wins.
func SelectConvergenceMode(basin BasinClassification, hint PriorityHint, userSamples int) ConvergenceMode {
	if userSamples > 0 {
		return ConvergenceMode{Parallel: userSamples > 1, InitialSamples: userSamples}
	}

	switch basin {
	case BasinWide, BasinModerate:
		return ConvergenceMode{Parallel: false}
	case BasinNarrow:
		switch hint {
		case PriorityHintThorough:
			return ConvergenceMode{Parallel: true, InitialSamples: 3}
		case PriorityHintFast:
			return ConvergenceMode{Parallel: true, InitialSamples: 2}
		case PriorityHintCheap:
			return ConvergenceMode{Parallel: false}
		default:
			return ConvergenceMode{Parallel: true, InitialSamples: 2}
		}
	default:
		return ConvergenceMode{Parallel: false}
	}
}
