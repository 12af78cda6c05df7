// Package goals infers which applicability domains a task touches and
// loads matching organizational goals as aspirational prompt guidance —
// goals never own a task, they only inform it (SPEC_FULL.md SUPPLEMENTED
// FEATURES, grounded on original_source's goal_context_service.rs).
package goals

import "context"

// ConstraintType classifies a GoalConstraint's enforcement strength.
type ConstraintType string

const (
	ConstraintMust      ConstraintType = "must"
	ConstraintShould    ConstraintType = "should"
	ConstraintPreferred ConstraintType = "preferred"
)

// Constraint is one concrete rule attached to a Goal.
type Constraint struct {
	Name           string
	Description    string
	ConstraintType ConstraintType
}

// Goal is an organizational aspiration relevant to one or more domains.
type Goal struct {
	ID                 string
	Name               string
	Description        string
	Domains            []string
	Constraints        []Constraint
	EvaluationCriteria []string
	Active             bool
}

// Repository loads goals by applicability domain.
type Repository interface {
	FindByDomains(ctx context.Context, domains []string) ([]Goal, error)
}
