package config

import (
	"time"

	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/convergence"
	"github.com/odgrim/abathur/pkg/guardrails"
)

// DefaultConfig returns the conservative, broadly-applicable starting
// point a deployment's abathur.yaml is merged onto (mirrors the teacher's
// DefaultQueueConfig/GetBuiltinConfig convention of "defaults first, user
// YAML overrides").
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxParallelTrajectories:      4,
			EnableProactiveDecomposition: true,
			MemoryEnabled:                true,
			EventEmissionEnabled:         true,
			StrategyExecutorTimeout:      5 * time.Minute,
			RateLimitRPS:                 2.0,
			RateLimitBurst:               5,
		},
		Policy:     policyConfigFromPolicy(convergence.DefaultPolicy()),
		Guardrails: fromGuardrailsConfig(guardrails.DefaultConfig()),
		Audit:      fromAuditConfig(auditlog.DefaultConfig()),
		Memory: MemoryConfig{
			Backend:    "memory",
			DefaultTTL: 30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

func policyConfigFromPolicy(p convergence.Policy) PolicyConfig {
	return PolicyConfig{
		AcceptanceThreshold:         p.AcceptanceThreshold,
		PartialAcceptance:           p.PartialAcceptance,
		PartialThreshold:            p.PartialThreshold,
		ExplorationWeight:           p.ExplorationWeight,
		MaxFreshStarts:              p.MaxFreshStarts,
		IntentVerificationFrequency: p.IntentVerificationFrequency,
		GenerateAcceptanceTests:     p.GenerateAcceptanceTests,
		SkipExpensiveOverseers:      p.SkipExpensiveOverseers,
		PriorityHint:                string(p.PriorityHint),
	}
}
