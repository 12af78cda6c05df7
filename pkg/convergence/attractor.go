package convergence

import (
	"hash/fnv"
	"math"
	"strconv"
)

// AttractorType classifies the trend a trajectory's observation window is
// settling into (spec.md §4.5.5).
type AttractorType string

const (
	AttractorFixedPoint    AttractorType = "fixed_point"
	AttractorLimitCycle    AttractorType = "limit_cycle"
	AttractorDivergent     AttractorType = "divergent"
	AttractorPlateau       AttractorType = "plateau"
	AttractorIndeterminate AttractorType = "indeterminate"
)

// classificationWindow is the trailing number of observations examined —
// too few observations to fill it always yields Indeterminate.
const classificationWindow = 4

// minCyclePeriod/maxCyclePeriod bound the repeating periods LimitCycle
// detection searches for (spec.md §4.5.5.6: "period ∈ {2..5}").
const (
	minCyclePeriod = 2
	maxCyclePeriod = 5
)

const (
	fixedPointEpsilon = 0.02 // successive deltas smaller than this: settled
	plateauBand       = 0.05 // level staying within this band: plateaued
)

// ClassifyAttractor inspects the trailing window of observations in a
// trajectory and returns the attractor the convergence_level trend is
// settling into, relative to acceptanceThreshold (spec.md §4.5.5.6: FixedPoint
// requires the settled level to be passing at the threshold; Plateau
// requires it to be strictly below). Fewer than classificationWindow
// observations is always Indeterminate — there isn't enough signal yet.
func ClassifyAttractor(observations []Observation, acceptanceThreshold float64) AttractorType {
	if len(observations) < classificationWindow {
		return AttractorIndeterminate
	}

	window := observations[len(observations)-classificationWindow:]

	levels := make([]float64, len(window))
	for i, o := range window {
		levels[i] = o.ConvergenceLevel
	}

	if allNear(levels, levels[len(levels)-1], fixedPointEpsilon) && levels[len(levels)-1] >= acceptanceThreshold {
		return AttractorFixedPoint
	}

	if _, cyclic := limitCyclePeriod(window); cyclic {
		return AttractorLimitCycle
	}

	if isMonotoneDecreasing(levels) {
		return AttractorDivergent
	}

	if allNear(levels, average(levels), plateauBand) && levels[len(levels)-1] < acceptanceThreshold {
		return AttractorPlateau
	}

	return AttractorIndeterminate
}

func allNear(values []float64, target, tolerance float64) bool {
	for _, v := range values {
		if math.Abs(v-target) > tolerance {
			return false
		}
	}
	return true
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// cycleSignature hashes the normalised "shape" of one observation's overseer
// signals with FNV-1a (spec.md §4.5.5.6: "cycle_signatures — a normalised
// hash of overseer signal shape"), so two iterations that reproduce the same
// pass/fail pattern hash identically regardless of the exact numeric delta.
func cycleSignature(o Observation) uint64 {
	h := fnv.New64a()
	s := o.Signals
	h.Write([]byte(strconv.FormatBool(s.TestsRan)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.TestsFailed == 0)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.BuildRan)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.BuildSucceeded)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.TypeCheckRan)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.TypeCheckClean)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatBool(s.LintRan)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(s.LintIssueCount)))
	return h.Sum64()
}

// limitCyclePeriod searches window for the smallest repeating period in
// {minCyclePeriod..maxCyclePeriod} over the observations' cycle_signatures —
// the window is oscillating between a small set of recurring shapes rather
// than settling or trending.
func limitCyclePeriod(window []Observation) (int, bool) {
	sigs := make([]uint64, len(window))
	for i, o := range window {
		sigs[i] = cycleSignature(o)
	}

	for period := minCyclePeriod; period <= maxCyclePeriod; period++ {
		if period >= len(sigs) {
			continue
		}
		matches := true
		for i := period; i < len(sigs); i++ {
			if sigs[i] != sigs[i-period] {
				matches = false
				break
			}
		}
		if matches {
			return period, true
		}
	}
	return 0, false
}

func isMonotoneDecreasing(levels []float64) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1]-fixedPointEpsilon {
			return false
		}
	}
	return levels[len(levels)-1] < levels[0]
}
