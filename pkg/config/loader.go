package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig is the abathur.yaml file shape; every field is optional and
// missing ones fall back to DefaultConfig's value via the mergo overlay in
// load.
type yamlConfig struct {
	Engine     *EngineConfig         `yaml:"engine"`
	Policy     *PolicyConfig         `yaml:"policy"`
	Guardrails *GuardrailsYAMLConfig `yaml:"guardrails"`
	Audit      *AuditYAMLConfig      `yaml:"audit"`
	Memory     *MemoryConfig         `yaml:"memory"`
	Server     *ServerConfig         `yaml:"server"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read abathur.yaml from configDir (if absent, defaults apply untouched)
//  2. Expand environment variables
//  3. Parse YAML into a yamlConfig overlay
//  4. Merge the overlay onto DefaultConfig (user values override defaults)
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"max_parallel_trajectories", stats.MaxParallelTrajectories,
		"memory_backend", stats.MemoryBackend,
		"event_emission_enabled", stats.EventEmissionEnabled)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "abathur.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A deployment can run on pure defaults; abathur.yaml is optional.
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var overlay yamlConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergeOverlay(cfg, &overlay); err != nil {
		return nil, NewLoadError(path, err)
	}

	return cfg, nil
}

// mergeOverlay merges each present YAML section onto cfg's matching
// default via dario.cat/mergo, so a deployment's abathur.yaml only needs
// to name the handful of fields it wants to override.
func mergeOverlay(cfg *Config, overlay *yamlConfig) error {
	if overlay.Engine != nil {
		if err := mergo.Merge(&cfg.Engine, overlay.Engine, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge engine config: %w", err)
		}
	}
	if overlay.Policy != nil {
		if err := mergo.Merge(&cfg.Policy, overlay.Policy, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge policy config: %w", err)
		}
	}
	if overlay.Guardrails != nil {
		if err := mergo.Merge(&cfg.Guardrails, overlay.Guardrails, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge guardrails config: %w", err)
		}
	}
	if overlay.Audit != nil {
		if err := mergo.Merge(&cfg.Audit, overlay.Audit, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge audit config: %w", err)
		}
	}
	if overlay.Memory != nil {
		if err := mergo.Merge(&cfg.Memory, overlay.Memory, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge memory config: %w", err)
		}
	}
	if overlay.Server != nil {
		if err := mergo.Merge(&cfg.Server, overlay.Server, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge server config: %w", err)
		}
	}
	return nil
}
