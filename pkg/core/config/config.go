// Package config loads the engine policy knobs from config/engine.yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"vc_waterfall/pkg/core/captable"
	"vc_waterfall/pkg/core/pwerm"
)

// EngineConfig holds the configurable policies of the valuation engine.
// Everything has a sensible default; the file only overrides.
type EngineConfig struct {
	// SeniorityPolicy orders rounds lacking explicit rank metadata.
	// One of: reverse_chronological (default), chronological, pari_passu.
	SeniorityPolicy string `yaml:"seniority_policy"`
	// WeightTolerance is the allowed deviation of scenario probability sums
	// from 1 before the run fails.
	WeightTolerance float64 `yaml:"weight_tolerance"`
	// Renormalize rescales out-of-tolerance probabilities instead of
	// failing. Must be opted into explicitly.
	Renormalize bool `yaml:"renormalize"`
	// MegaExitMultiple defines the mega-exit threshold (x total invested).
	MegaExitMultiple float64 `yaml:"mega_exit_multiple"`
	// FocusClass drives the percentile ladder: round name, "common", or
	// empty for total exit value.
	FocusClass string `yaml:"focus_class"`
}

// Default returns the standard engine policy.
func Default() EngineConfig {
	return EngineConfig{
		SeniorityPolicy:  string(captable.SeniorityReverseChronological),
		WeightTolerance:  1e-4,
		MegaExitMultiple: 10,
	}
}

// Load reads the config file, applying defaults for anything unset. A
// missing file is not an error: the defaults simply apply.
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.SeniorityPolicy == "" {
		cfg.SeniorityPolicy = string(captable.SeniorityReverseChronological)
	}
	if cfg.WeightTolerance <= 0 {
		cfg.WeightTolerance = 1e-4
	}
	if cfg.MegaExitMultiple <= 0 {
		cfg.MegaExitMultiple = 10
	}
	return cfg, nil
}

// Policy converts the configured seniority policy string.
func (c EngineConfig) Policy() captable.SeniorityPolicy {
	return captable.SeniorityPolicy(c.SeniorityPolicy)
}

// PWERM builds the aggregator config from the engine policy.
func (c EngineConfig) PWERM() pwerm.Config {
	return pwerm.Config{
		WeightTolerance:  c.WeightTolerance,
		Renormalize:      c.Renormalize,
		MegaExitMultiple: c.MegaExitMultiple,
		FocusClass:       c.FocusClass,
	}
}
