package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxConcurrency != 0 {
		t.Errorf("MaxConcurrency = %d, want 0 (unlimited)", cfg.MaxConcurrency)
	}
	if cfg.Vcs.BranchPrefix != "chopstack/" {
		t.Errorf("Vcs.BranchPrefix = %q, want %q", cfg.Vcs.BranchPrefix, "chopstack/")
	}
	if cfg.Vcs.ShadowPath != ".chopstack/shadows" {
		t.Errorf("Vcs.ShadowPath = %q, want %q", cfg.Vcs.ShadowPath, ".chopstack/shadows")
	}
	if !cfg.Vcs.CleanupOnSuccess {
		t.Error("Vcs.CleanupOnSuccess should default to true")
	}
	if cfg.Vcs.CleanupOnFailure {
		t.Error("Vcs.CleanupOnFailure should default to false")
	}
	if cfg.Vcs.ConflictStrategy != "auto" {
		t.Errorf("Vcs.ConflictStrategy = %q, want %q", cfg.Vcs.ConflictStrategy, "auto")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got %v", err)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Vcs.BranchPrefix != "chopstack/" {
		t.Errorf("expected defaults when file is missing, got branch prefix %q", cfg.Vcs.BranchPrefix)
	}
}

func TestLoadConfig_MergesPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "max_concurrency: 4\nvcs:\n  conflict_strategy: manual\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.Vcs.ConflictStrategy != "manual" {
		t.Errorf("Vcs.ConflictStrategy = %q, want %q", cfg.Vcs.ConflictStrategy, "manual")
	}
	// Untouched fields keep their defaults.
	if cfg.Vcs.BranchPrefix != "chopstack/" {
		t.Errorf("Vcs.BranchPrefix = %q, want default %q to survive a partial file", cfg.Vcs.BranchPrefix, "chopstack/")
	}
	if !cfg.Vcs.CleanupOnSuccess {
		t.Error("Vcs.CleanupOnSuccess default should survive a partial file")
	}
}

func TestLoadConfig_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_concurrency: [1, 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestLoadConfig_EnvOverridesTakePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vcs:\n  conflict_strategy: manual\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHOPSTACK_CONFLICT_STRATEGY", "fail")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Vcs.ConflictStrategy != "fail" {
		t.Errorf("Vcs.ConflictStrategy = %q, want env override %q", cfg.Vcs.ConflictStrategy, "fail")
	}
}

func TestMergeWithFlags_OnlyOverridesNonNilFields(t *testing.T) {
	cfg := DefaultConfig()
	maxConcurrency := 8
	cfg.MergeWithFlags(&maxConcurrency, nil, nil, nil, nil)

	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.Timeout != DefaultConfig().Timeout {
		t.Error("Timeout should be untouched when its flag is nil")
	}
}

func TestValidate_RejectsNegativeMaxConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for negative max_concurrency")
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized log level")
	}
}

func TestValidate_RejectsUnknownConflictStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vcs.ConflictStrategy = "ask-nicely"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized conflict strategy")
	}
}

func TestValidate_RejectsEmptyBranchPrefix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vcs.BranchPrefix = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an empty branch prefix")
	}
}

func TestValidate_RejectsNegativeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a negative timeout")
	}
}
