// Package modelrouter selects a cost-effective model for a task based on
// its complexity, an optional agent-tier hint, and the retry attempt
// number — supplementing the Strategy Executor boundary with a model
// field (SPEC_FULL.md SUPPLEMENTED FEATURES).
package modelrouter

import (
	"fmt"

	"github.com/odgrim/abathur/pkg/convergence"
)

// AgentTierHint biases model selection independent of task complexity.
type AgentTierHint string

const (
	AgentTierArchitect  AgentTierHint = "architect"
	AgentTierSpecialist AgentTierHint = "specialist"
	AgentTierWorker     AgentTierHint = "worker"
)

// Config holds the per-complexity model names and escalation toggles.
type Config struct {
	Enabled                bool
	TrivialModel           string
	SimpleModel            string
	ModerateModel          string
	ComplexModel           string
	RetryEscalation        bool
	ArchitectAlwaysComplex bool
}

// DefaultConfig mirrors the Rust ModelRoutingConfig::default(): Haiku for
// trivial/simple, Sonnet for moderate, Opus for complex.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		TrivialModel:           "haiku",
		SimpleModel:            "haiku",
		ModerateModel:          "sonnet",
		ComplexModel:           "opus",
		RetryEscalation:        true,
		ArchitectAlwaysComplex: true,
	}
}

// Selection is the outcome of one routing decision.
type Selection struct {
	Model     string
	Reason    string
	Escalated bool
}

// Router selects a model per call per Config.
type Router struct {
	config Config
}

func New(config Config) *Router {
	return &Router{config: config}
}

// NewWithDefaults builds a Router with DefaultConfig().
func NewWithDefaults() *Router {
	return New(DefaultConfig())
}

// SelectModel picks a model for complexity, optionally forced upward by
// agentTier (Architect) or by retryAttempt escalation.
func (r *Router) SelectModel(complexity convergence.Complexity, agentTier *AgentTierHint, retryAttempt int) Selection {
	if !r.config.Enabled {
		return Selection{Model: r.config.ComplexModel, Reason: "routing disabled"}
	}

	if r.config.ArchitectAlwaysComplex && agentTier != nil && *agentTier == AgentTierArchitect {
		return Selection{Model: r.config.ComplexModel, Reason: "architect agent"}
	}

	base := complexity
	effective := base
	if r.config.RetryEscalation && retryAttempt > 0 {
		effective = escalateComplexity(base, retryAttempt)
	}
	escalated := effective != base

	var model string
	switch effective {
	case convergence.ComplexityTrivial:
		model = r.config.TrivialModel
	case convergence.ComplexitySimple:
		model = r.config.SimpleModel
	case convergence.ComplexityModerate:
		model = r.config.ModerateModel
	default:
		model = r.config.ComplexModel
	}

	var reason string
	if escalated {
		reason = fmt.Sprintf("%s task escalated to %s (retry #%d)", base, effective, retryAttempt)
	} else {
		reason = fmt.Sprintf("%s complexity", effective)
	}

	return Selection{Model: model, Reason: reason, Escalated: escalated}
}

var complexityLevel = map[convergence.Complexity]int{
	convergence.ComplexityTrivial:  0,
	convergence.ComplexitySimple:   1,
	convergence.ComplexityModerate: 2,
	convergence.ComplexityComplex:  3,
}

var levelComplexity = []convergence.Complexity{
	convergence.ComplexityTrivial,
	convergence.ComplexitySimple,
	convergence.ComplexityModerate,
	convergence.ComplexityComplex,
}

// escalateComplexity raises base by retryAttempt levels, capped at Complex.
func escalateComplexity(base convergence.Complexity, retryAttempt int) convergence.Complexity {
	level := complexityLevel[base] + retryAttempt
	if level > 3 {
		level = 3
	}
	return levelComplexity[level]
}
