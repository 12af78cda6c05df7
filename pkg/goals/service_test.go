package goals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
)

func TestInferTaskDomainsCodeQuality(t *testing.T) {
	tk := task.New("Implement the parser", "build a new tokenizer")
	domains := InferTaskDomains(tk, nil)
	assert.Contains(t, domains, "code-quality")
}

func TestInferTaskDomainsFrontendAddsBothFrontendAndUX(t *testing.T) {
	tk := task.New("Fix layout bug", "the css for the component is broken")
	domains := InferTaskDomains(tk, nil)
	assert.Contains(t, domains, "frontend")
	assert.Contains(t, domains, "ux")
}

func TestInferTaskDomainsSecurityFromAgentType(t *testing.T) {
	tk := task.New("Review", "general review")
	tk.AgentType = "security-reviewer"
	domains := InferTaskDomains(tk, nil)
	assert.Contains(t, domains, "security")
}

func TestInferTaskDomainsExplicitDomainsAppendedDeduplicated(t *testing.T) {
	tk := task.New("do something", "unrelated text")
	domains := InferTaskDomains(tk, []string{"code-quality", "custom-domain"})
	assert.Contains(t, domains, "custom-domain")
	count := 0
	for _, d := range domains {
		if d == "code-quality" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestInferTaskDomainsNoMatchIsEmpty(t *testing.T) {
	tk := task.New("hmm", "")
	assert.Empty(t, InferTaskDomains(tk, nil))
}

func TestGetGoalsForTaskEmptyDomainsShortCircuits(t *testing.T) {
	repo := NewMemRepository()
	svc := NewService(repo)
	tk := task.New("hmm", "")
	result, err := svc.GetGoalsForTask(context.Background(), tk, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestGetGoalsForTaskLoadsMatchingActiveGoals(t *testing.T) {
	repo := NewMemRepository(
		Goal{Name: "Code Quality", Domains: []string{"code-quality"}, Active: true},
		Goal{Name: "Inactive", Domains: []string{"code-quality"}, Active: false},
		Goal{Name: "Security", Domains: []string{"security"}, Active: true},
	)
	svc := NewService(repo)
	tk := task.New("Implement a feature", "build it")

	result, err := svc.GetGoalsForTask(context.Background(), tk, nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Code Quality", result[0].Name)
}

func TestFormatGoalContextEmptyGoalsReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", FormatGoalContext(nil))
}

func TestFormatGoalContextIncludesConstraintsAndCriteria(t *testing.T) {
	goal := Goal{
		Name:               "Code Quality",
		Description:        "Write maintainable code",
		Constraints:        []Constraint{{Name: "no-globals", Description: "avoid global state", ConstraintType: ConstraintMust}},
		EvaluationCriteria: []string{"passes linter"},
	}
	out := FormatGoalContext([]Goal{goal})
	assert.Contains(t, out, "## Guiding Goals")
	assert.Contains(t, out, "Code Quality")
	assert.Contains(t, out, "no-globals")
	assert.Contains(t, out, "passes linter")
}

func TestCollectConstraintsDeduplicatesByName(t *testing.T) {
	goals := []Goal{
		{Constraints: []Constraint{{Name: "a", Description: "first"}}},
		{Constraints: []Constraint{{Name: "a", Description: "duplicate, ignored"}, {Name: "b", Description: "second"}}},
	}
	constraints := CollectConstraints(goals)
	require.Len(t, constraints, 2)
	assert.Equal(t, "first", constraints[0].Description)
}
