package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration comprehensively with clear error
// messages.
type Validator struct {
	cfg    *Config
	engine *validator.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, engine: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateAll performs comprehensive validation, fail-fast: it stops at
// the first section to fail so the caller sees one focused error rather
// than a wall of unrelated ones, validating in dependency order (engine
// knobs first, since policy/guardrails tuning is meaningless if the
// engine's own concurrency settings are broken).
func (v *Validator) ValidateAll() error {
	if err := v.validateSection("engine", v.cfg.Engine); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}
	if err := v.validateSection("policy", v.cfg.Policy); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}
	if err := v.validateSection("guardrails", v.cfg.Guardrails); err != nil {
		return fmt.Errorf("guardrails validation failed: %w", err)
	}
	if err := v.validateSection("audit", v.cfg.Audit); err != nil {
		return fmt.Errorf("audit validation failed: %w", err)
	}
	if err := v.validateSection("memory", v.cfg.Memory); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}
	if err := v.validateSection("server", v.cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateCrossSection(); err != nil {
		return fmt.Errorf("cross-section validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateSection(name string, section any) error {
	if err := v.engine.Struct(section); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return NewValidationError(name, first.Field(), fmt.Errorf("failed %q validation (value: %v)", first.Tag(), first.Value()))
		}
		return NewValidationError(name, "", err)
	}
	return nil
}

// validateCrossSection checks invariants that span multiple sections and
// so cannot be expressed as a single struct tag.
func (v *Validator) validateCrossSection() error {
	if v.cfg.Policy.PartialAcceptance && v.cfg.Policy.PartialThreshold > v.cfg.Policy.AcceptanceThreshold {
		return NewValidationError("policy", "partial_threshold",
			fmt.Errorf("must be <= acceptance_threshold (%.2f), got %.2f", v.cfg.Policy.AcceptanceThreshold, v.cfg.Policy.PartialThreshold))
	}
	if v.cfg.Engine.MaxParallelTrajectories > v.cfg.Guardrails.MaxConcurrentTasks {
		return NewValidationError("engine", "max_parallel_trajectories",
			fmt.Errorf("exceeds guardrails.max_concurrent_tasks (%d)", v.cfg.Guardrails.MaxConcurrentTasks))
	}
	return nil
}
