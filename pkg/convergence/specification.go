package convergence

import "time"

// AmendmentSource names where a specification amendment came from,
// determining which facet of the snapshot it is routed into (spec.md §3).
type AmendmentSource string

const (
	SourceUserHint                 AmendmentSource = "user_hint"
	SourceImplicitRequirementFound AmendmentSource = "implicit_requirement_discovered"
	SourceOverseerDiscovery        AmendmentSource = "overseer_discovery"
	SourceArchitectAmendment       AmendmentSource = "architect_amendment"
	SourceTestDisambiguation       AmendmentSource = "test_disambiguation"
	SourceSubmissionConstraint     AmendmentSource = "submission_constraint"
)

// Snapshot is the full specification text plus its extracted facets at a
// point in the trajectory.
type Snapshot struct {
	Text            string
	KeyRequirements []string
	SuccessCriteria []string
	Constraints     []string
	AntiPatterns    []string
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Text:            s.Text,
		KeyRequirements: append([]string(nil), s.KeyRequirements...),
		SuccessCriteria: append([]string(nil), s.SuccessCriteria...),
		Constraints:     append([]string(nil), s.Constraints...),
		AntiPatterns:    append([]string(nil), s.AntiPatterns...),
	}
}

// Amendment is one change folded into a trajectory's specification.
type Amendment struct {
	Source                AmendmentSource
	Description           string
	Rationale             string
	TriggeringObservation *int
	Timestamp             time.Time
}

// Evolution owns the immutable original snapshot plus the append-only
// amendment log, and derives the effective snapshot on demand.
type Evolution struct {
	Original   Snapshot
	Amendments []Amendment
	effective  Snapshot
}

// NewEvolution seeds an Evolution from the submission's original
// specification text.
func NewEvolution(original Snapshot) *Evolution {
	e := &Evolution{Original: original}
	e.effective = original.clone()
	return e
}

// Effective returns the current derived snapshot.
func (e *Evolution) Effective() Snapshot {
	return e.effective
}

// Amend appends an amendment and re-derives the effective snapshot,
// routing the amendment's description into the facet spec.md §3 names:
// UserHint/Implicit/Architect -> key requirements; Overseer/Submission ->
// constraints; TestDisambiguation -> success criteria.
func (e *Evolution) Amend(a Amendment) {
	a.Timestamp = time.Now()
	e.Amendments = append(e.Amendments, a)

	switch a.Source {
	case SourceUserHint, SourceImplicitRequirementFound, SourceArchitectAmendment:
		e.effective.KeyRequirements = append(e.effective.KeyRequirements, a.Description)
	case SourceOverseerDiscovery, SourceSubmissionConstraint:
		e.effective.Constraints = append(e.effective.Constraints, a.Description)
	case SourceTestDisambiguation:
		e.effective.SuccessCriteria = append(e.effective.SuccessCriteria, a.Description)
	}
}

// AddInvariant amends the effective snapshot with a discovered invariant,
// routed as a key requirement (invariants are a form of implicit
// requirement discovery).
func (e *Evolution) AddInvariant(description, rationale string) {
	e.Amend(Amendment{
		Source:      SourceImplicitRequirementFound,
		Description: description,
		Rationale:   rationale,
	})
}

// AddAntiPattern records a discovered anti-pattern directly on the
// effective snapshot (anti-patterns are not routed through the facet
// table — they are their own facet).
func (e *Evolution) AddAntiPattern(pattern string) {
	e.effective.AntiPatterns = append(e.effective.AntiPatterns, pattern)
}
