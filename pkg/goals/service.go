package goals

import (
	"context"
	"fmt"
	"strings"

	"github.com/odgrim/abathur/pkg/task"
)

// domainRule pairs a set of agent-type/text keywords with the domains they
// imply, mirroring infer_task_domains' sequence of checks exactly
// (code-quality -> frontend/ux -> testing -> security -> performance ->
// infrastructure -> backend).
type domainRule struct {
	agentKeywords []string
	textKeywords  []string
	domains       []string
}

var domainRules = []domainRule{
	{
		agentKeywords: []string{"code", "developer", "engineer"},
		textKeywords:  []string{"implement", "refactor", "write", "build", "create", "fix"},
		domains:       []string{"code-quality"},
	},
	{
		agentKeywords: []string{"frontend"},
		textKeywords:  []string{"ui", "ux", "component", "css", "layout", "design", "user interface"},
		domains:       []string{"frontend", "ux"},
	},
	{
		textKeywords: []string{"test", "spec", "coverage", "assertion", "mock"},
		domains:      []string{"testing"},
	},
	{
		agentKeywords: []string{"security"},
		textKeywords:  []string{"auth", "encrypt", "vulnerab", "permission", "credential", "token", "secret"},
		domains:       []string{"security"},
	},
	{
		textKeywords: []string{"perf", "optimiz", "cache", "latency", "throughput", "speed"},
		domains:      []string{"performance"},
	},
	{
		textKeywords: []string{"deploy", "infra", "terraform", "docker", "ci/cd", "pipeline", "kubernetes", "k8s"},
		domains:      []string{"infrastructure"},
	},
	{
		agentKeywords: []string{"backend"},
		textKeywords:  []string{"api", "endpoint", "database", "query", "migration", "server"},
		domains:       []string{"backend"},
	},
}

// InferTaskDomains infers which applicability domains a task touches by
// keyword matching over its summary/description/input and agent-type tag.
func InferTaskDomains(t *task.Task, explicitDomains []string) []string {
	text := strings.ToLower(t.Summary + " " + t.Description + " " + t.Input)
	agent := strings.ToLower(t.AgentType)

	var domains []string
	seen := make(map[string]bool)
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}

	for _, rule := range domainRules {
		matched := false
		for _, kw := range rule.agentKeywords {
			if strings.Contains(agent, kw) {
				matched = true
				break
			}
		}
		if !matched {
			for _, kw := range rule.textKeywords {
				if strings.Contains(text, kw) {
					matched = true
					break
				}
			}
		}
		if matched {
			for _, d := range rule.domains {
				add(d)
			}
		}
	}

	for _, d := range explicitDomains {
		add(d)
	}

	return domains
}

// Service loads goals relevant to a task's inferred domains and formats
// them as prompt guidance.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetRelevantGoals loads all active goals matching any of domains.
func (s *Service) GetRelevantGoals(ctx context.Context, domains []string) ([]Goal, error) {
	return s.repo.FindByDomains(ctx, domains)
}

// GetGoalsForTask infers domains from t then loads matching goals.
func (s *Service) GetGoalsForTask(ctx context.Context, t *task.Task, explicitDomains []string) ([]Goal, error) {
	domains := InferTaskDomains(t, explicitDomains)
	if len(domains) == 0 {
		return nil, nil
	}
	return s.GetRelevantGoals(ctx, domains)
}

// FormatGoalContext renders goals as a Markdown guidance block for
// inclusion in a strategy executor's focus areas.
func FormatGoalContext(goals []Goal) string {
	if len(goals) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Guiding Goals\nThe following organizational goals are relevant to this task. Use them as guidance:\n\n")

	for _, g := range goals {
		fmt.Fprintf(&b, "### %s\n", g.Name)
		fmt.Fprintf(&b, "%s\n", g.Description)

		if len(g.Constraints) > 0 {
			b.WriteString("Constraints:\n")
			for _, c := range g.Constraints {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", c.ConstraintType, c.Name, c.Description)
			}
		}

		if len(g.EvaluationCriteria) > 0 {
			b.WriteString("Success criteria:\n")
			for _, criterion := range g.EvaluationCriteria {
				fmt.Fprintf(&b, "- %s\n", criterion)
			}
		}

		b.WriteString("\n")
	}

	return b.String()
}

// CollectConstraints flattens constraints across goals, deduplicated by
// name (first occurrence wins).
func CollectConstraints(goals []Goal) []Constraint {
	var out []Constraint
	seen := make(map[string]bool)
	for _, g := range goals {
		for _, c := range g.Constraints {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c)
			}
		}
	}
	return out
}
