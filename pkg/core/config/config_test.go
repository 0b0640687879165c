package config

import (
	"os"
	"path/filepath"
	"testing"

	"vc_waterfall/pkg/core/captable"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing config file should not error: %v", err)
	}
	if cfg.Policy() != captable.SeniorityReverseChronological {
		t.Errorf("Expected default policy, got %q", cfg.SeniorityPolicy)
	}
	if cfg.WeightTolerance != 1e-4 || cfg.MegaExitMultiple != 10 {
		t.Errorf("Expected default tolerances, got %+v", cfg)
	}
	if cfg.Renormalize {
		t.Error("Renormalize must default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := "seniority_policy: pari_passu\nmega_exit_multiple: 5\nrenormalize: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Policy() != captable.SeniorityPariPassu {
		t.Errorf("Expected pari_passu policy, got %q", cfg.SeniorityPolicy)
	}
	if cfg.MegaExitMultiple != 5 {
		t.Errorf("Expected mega_exit_multiple 5, got %f", cfg.MegaExitMultiple)
	}
	if !cfg.Renormalize {
		t.Error("Expected renormalize on")
	}
	// Unset fields keep their defaults.
	if cfg.WeightTolerance != 1e-4 {
		t.Errorf("Expected default weight tolerance, got %f", cfg.WeightTolerance)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(":\t not yaml ["), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed yaml")
	}
}

func TestPWERMConversion(t *testing.T) {
	cfg := EngineConfig{WeightTolerance: 1e-3, Renormalize: true, MegaExitMultiple: 8, FocusClass: "common"}
	p := cfg.PWERM()
	if p.WeightTolerance != 1e-3 || !p.Renormalize || p.MegaExitMultiple != 8 || p.FocusClass != "common" {
		t.Errorf("PWERM config mismatch: %+v", p)
	}
}
