// Package config loads, validates, and hands out abathur's process-wide
// configuration: Convergence Engine knobs, the default ConvergencePolicy,
// guardrails and audit-log tuning, the memory backend selection, and the
// HTTP server's listen settings.
package config

import (
	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/convergence"
	"github.com/odgrim/abathur/pkg/guardrails"
)

// Config is the umbrella configuration object returned by Initialize and
// threaded through cmd/abathur's wiring.
type Config struct {
	configDir string

	Engine     EngineConfig
	Policy     PolicyConfig
	Guardrails GuardrailsYAMLConfig
	Audit      AuditYAMLConfig
	Memory     MemoryConfig
	Server     ServerConfig
}

// ConfigDir returns the directory Config was loaded from ("" for
// DefaultConfig()).
func (c *Config) ConfigDir() string { return c.configDir }

// DefaultPolicy returns the configured default ConvergencePolicy, the
// value new tasks get unless a caller supplies its own.
func (c *Config) DefaultPolicy() convergence.Policy { return c.Policy.ToPolicy() }

// GuardrailsConfig returns the configured guardrails.Config.
func (c *Config) GuardrailsConfig() guardrails.Config { return c.Guardrails.ToGuardrailsConfig() }

// AuditConfig returns the configured auditlog.Config.
func (c *Config) AuditConfig() auditlog.Config { return c.Audit.ToAuditConfig() }

// Stats summarizes the loaded configuration for startup logging.
type Stats struct {
	MaxParallelTrajectories int
	MemoryBackend           string
	EventEmissionEnabled    bool
	GuardrailsEnforceBudget bool
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		MaxParallelTrajectories: c.Engine.MaxParallelTrajectories,
		MemoryBackend:           c.Memory.Backend,
		EventEmissionEnabled:    c.Engine.EventEmissionEnabled,
		GuardrailsEnforceBudget: c.Guardrails.EnforceBudget,
	}
}
