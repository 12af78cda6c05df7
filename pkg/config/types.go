package config

import (
	"time"

	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/convergence"
	"github.com/odgrim/abathur/pkg/guardrails"
)

// EngineConfig holds the Convergence Engine's process-wide knobs (spec.md
// §4, §6) — the things that apply to every trajectory rather than to one
// task's ConvergencePolicy.
type EngineConfig struct {
	MaxParallelTrajectories      int           `yaml:"max_parallel_trajectories" validate:"min=1,max=256"`
	EnableProactiveDecomposition bool          `yaml:"enable_proactive_decomposition"`
	MemoryEnabled                bool          `yaml:"memory_enabled"`
	EventEmissionEnabled         bool          `yaml:"event_emission_enabled"`
	StrategyExecutorTimeout      time.Duration `yaml:"strategy_executor_timeout" validate:"min=0"`
	RateLimitRPS                 float64       `yaml:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst               int           `yaml:"rate_limit_burst" validate:"min=1"`
}

// PolicyConfig is the YAML-facing mirror of convergence.Policy; it is the
// default policy new tasks get unless a caller supplies its own override
// (spec.md §3 ConvergencePolicy).
type PolicyConfig struct {
	AcceptanceThreshold         float64 `yaml:"acceptance_threshold" validate:"min=0,max=1"`
	PartialAcceptance           bool    `yaml:"partial_acceptance"`
	PartialThreshold            float64 `yaml:"partial_threshold" validate:"min=0,max=1"`
	ExplorationWeight           float64 `yaml:"exploration_weight" validate:"min=0,max=1"`
	MaxFreshStarts              int     `yaml:"max_fresh_starts" validate:"min=0"`
	IntentVerificationFrequency int     `yaml:"intent_verification_frequency" validate:"min=1"`
	GenerateAcceptanceTests     bool    `yaml:"generate_acceptance_tests"`
	SkipExpensiveOverseers      bool    `yaml:"skip_expensive_overseers"`
	PriorityHint                string  `yaml:"priority_hint" validate:"omitempty,oneof=fast cheap thorough"`
}

// ToPolicy converts the YAML-facing PolicyConfig into convergence.Policy.
func (p PolicyConfig) ToPolicy() convergence.Policy {
	return convergence.Policy{
		AcceptanceThreshold:         p.AcceptanceThreshold,
		PartialAcceptance:           p.PartialAcceptance,
		PartialThreshold:            p.PartialThreshold,
		ExplorationWeight:           p.ExplorationWeight,
		MaxFreshStarts:              p.MaxFreshStarts,
		IntentVerificationFrequency: p.IntentVerificationFrequency,
		GenerateAcceptanceTests:     p.GenerateAcceptanceTests,
		SkipExpensiveOverseers:      p.SkipExpensiveOverseers,
		PriorityHint:                convergence.PriorityHint(p.PriorityHint),
	}
}

// GuardrailsYAMLConfig mirrors guardrails.Config for YAML decoding; kept as
// a distinct type (rather than adding yaml tags to guardrails.Config
// itself) so pkg/guardrails stays free of a YAML-library dependency.
type GuardrailsYAMLConfig struct {
	MaxTokensPerHour      uint64   `yaml:"max_tokens_per_hour" validate:"min=1"`
	MaxConcurrentTasks    int      `yaml:"max_concurrent_tasks" validate:"min=1"`
	MaxConcurrentAgents   int      `yaml:"max_concurrent_agents" validate:"min=1"`
	MaxDecompositionDepth int      `yaml:"max_decomposition_depth" validate:"min=1"`
	MaxTaskRetries        int      `yaml:"max_task_retries" validate:"min=0"`
	MaxTurnsPerInvocation int      `yaml:"max_turns_per_invocation" validate:"min=1"`
	BlockedTools          []string `yaml:"blocked_tools"`
	BlockedFiles          []string `yaml:"blocked_files"`
	EnforceBudget         bool     `yaml:"enforce_budget"`
	BudgetLimitCents      float64  `yaml:"budget_limit_cents" validate:"min=0"`
}

func (g GuardrailsYAMLConfig) ToGuardrailsConfig() guardrails.Config {
	return guardrails.Config{
		MaxTokensPerHour:      g.MaxTokensPerHour,
		MaxConcurrentTasks:    g.MaxConcurrentTasks,
		MaxConcurrentAgents:   g.MaxConcurrentAgents,
		MaxDecompositionDepth: g.MaxDecompositionDepth,
		MaxTaskRetries:        g.MaxTaskRetries,
		MaxTurnsPerInvocation: g.MaxTurnsPerInvocation,
		BlockedTools:          g.BlockedTools,
		BlockedFiles:          g.BlockedFiles,
		EnforceBudget:         g.EnforceBudget,
		BudgetLimitCents:      g.BudgetLimitCents,
	}
}

func fromGuardrailsConfig(g guardrails.Config) GuardrailsYAMLConfig {
	return GuardrailsYAMLConfig{
		MaxTokensPerHour:      g.MaxTokensPerHour,
		MaxConcurrentTasks:    g.MaxConcurrentTasks,
		MaxConcurrentAgents:   g.MaxConcurrentAgents,
		MaxDecompositionDepth: g.MaxDecompositionDepth,
		MaxTaskRetries:        g.MaxTaskRetries,
		MaxTurnsPerInvocation: g.MaxTurnsPerInvocation,
		BlockedTools:          g.BlockedTools,
		BlockedFiles:          g.BlockedFiles,
		EnforceBudget:         g.EnforceBudget,
		BudgetLimitCents:      g.BudgetLimitCents,
	}
}

// auditLevelNames maps the YAML-facing level name to auditlog.Level, since
// auditlog.Level has no YAML marshalling of its own.
var auditLevelNames = map[string]auditlog.Level{
	"debug":    auditlog.LevelDebug,
	"info":     auditlog.LevelInfo,
	"decision": auditlog.LevelDecision,
	"warning":  auditlog.LevelWarning,
	"error":    auditlog.LevelError,
	"critical": auditlog.LevelCritical,
}

// AuditYAMLConfig mirrors auditlog.Config for YAML decoding.
type AuditYAMLConfig struct {
	MaxEntries      int    `yaml:"max_entries" validate:"min=1"`
	MinLevel        string `yaml:"min_level" validate:"omitempty,oneof=debug info decision warning error critical"`
	LogRationale    bool   `yaml:"log_rationale"`
	RedactSensitive bool   `yaml:"redact_sensitive"`
}

func (a AuditYAMLConfig) ToAuditConfig() auditlog.Config {
	level, ok := auditLevelNames[a.MinLevel]
	if !ok {
		level = auditlog.LevelInfo
	}
	return auditlog.Config{
		MaxEntries:      a.MaxEntries,
		MinLevel:        level,
		LogRationale:    a.LogRationale,
		RedactSensitive: a.RedactSensitive,
	}
}

func fromAuditConfig(a auditlog.Config) AuditYAMLConfig {
	name := "info"
	for k, v := range auditLevelNames {
		if v == a.MinLevel {
			name = k
			break
		}
	}
	return AuditYAMLConfig{
		MaxEntries:      a.MaxEntries,
		MinLevel:        name,
		LogRationale:    a.LogRationale,
		RedactSensitive: a.RedactSensitive,
	}
}

// MemoryConfig selects and configures the convergence engine's
// MemoryRepository backend (pkg/memory).
type MemoryConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=memory redis"`
	RedisURL   string        `yaml:"redis_url" validate:"required_if=Backend redis"`
	DefaultTTL time.Duration `yaml:"default_ttl" validate:"min=0"`
}

// ServerConfig holds the HTTP surface's listen settings (pkg/api).
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}
