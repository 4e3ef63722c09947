package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 0
	cfg.Timeout = 0
	cfg.Burst = 0
	cfg.Role = "bogus"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an invalid role")
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want clamped to 1", cfg.Concurrency)
	}
	if cfg.Timeout != time.Second {
		t.Errorf("Timeout = %v, want clamped to 1s", cfg.Timeout)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() = %v, want nil for a missing config file", err)
	}
	if cfg.Role != "all" {
		t.Errorf("Role = %q, want default %q", cfg.Role, "all")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Concurrency = 999

	if cfg.Concurrency == 999 {
		t.Fatal("mutating the clone mutated the original")
	}
}
