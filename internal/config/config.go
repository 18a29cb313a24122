// Package config loads chopstack's run configuration: concurrency and
// timeout bounds, logging, and the VCS-engine policy knobs (branch prefix,
// shadow path, cleanup, conflict strategy, stack submission). Adapted from
// the teacher's internal/config/config.go, trimmed of the Learning,
// Feedback, and QualityControl sections that belong to a QC/learning
// subsystem chopstack does not carry.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output formatting, per spec.md §6's
// logging ambient-stack requirement.
type ConsoleConfig struct {
	EnableColor       bool `yaml:"enable_color"`
	EnableProgressBar bool `yaml:"enable_progress_bar"`
	ShowTaskDetails   bool `yaml:"show_task_details"`
	CompactMode       bool `yaml:"compact_mode"`
	ShowDurations     bool `yaml:"show_durations"`
}

// DefaultConsoleConfig returns sensible interactive-terminal defaults.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		EnableColor:       true,
		EnableProgressBar: true,
		ShowTaskDetails:   true,
		CompactMode:       false,
		ShowDurations:     true,
	}
}

// VcsConfig configures internal/vcsengine's worktree and stack-assembly
// policy, matching the defaults spec.md §6 documents.
type VcsConfig struct {
	// BranchPrefix prefixes every per-task branch name.
	BranchPrefix string `yaml:"branch_prefix"`

	// ShadowPath is where per-task worktrees live, relative to repo root.
	ShadowPath string `yaml:"shadow_path"`

	// CleanupOnSuccess removes a task's worktree once its commit is
	// integrated.
	CleanupOnSuccess bool `yaml:"cleanup_on_success"`

	// CleanupOnFailure removes a task's worktree even when the task failed.
	CleanupOnFailure bool `yaml:"cleanup_on_failure"`

	// ConflictStrategy is one of "auto", "manual", "fail".
	ConflictStrategy string `yaml:"conflict_strategy"`

	// SubmitStack requests a PR/review submission once the stack is
	// assembled, via the backend's Submit operation.
	SubmitStack bool `yaml:"submit_stack"`

	// Draft and AutoMerge are passed through to Submit when SubmitStack is
	// set.
	Draft     bool `yaml:"draft"`
	AutoMerge bool `yaml:"auto_merge"`
}

// DefaultVcsConfig returns spec.md §6's documented defaults: chopstack/
// branch prefix, .chopstack/shadows shadow path, cleanup on success but not
// failure (so a failed run's worktrees remain inspectable), auto conflict
// resolution for batch runs.
func DefaultVcsConfig() VcsConfig {
	return VcsConfig{
		BranchPrefix:     "chopstack/",
		ShadowPath:       ".chopstack/shadows",
		CleanupOnSuccess: true,
		CleanupOnFailure: false,
		ConflictStrategy: "auto",
	}
}

// Config is chopstack's run configuration.
type Config struct {
	// MaxConcurrency caps concurrent task dispatch per layer (0 = unlimited,
	// bounded only by the plan's own maxParallelization).
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout is the maximum wall-clock time for a single task's adapter
	// invocation.
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is where the file-log sink writes line-delimited JSON logs.
	LogDir string `yaml:"log_dir"`

	// DryRun runs only the DAG validator, dispatching no tasks.
	DryRun bool `yaml:"dry_run"`

	// ContinueOnError keeps executing independent layers after a task fails
	// instead of halting the whole run.
	ContinueOnError bool `yaml:"continue_on_error"`

	Console ConsoleConfig `yaml:"console"`
	Vcs     VcsConfig     `yaml:"vcs"`
}

// DefaultConfig returns a Config with spec.md §6's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:  0,
		Timeout:         2 * time.Hour,
		LogLevel:        "info",
		LogDir:          ".chopstack/logs",
		DryRun:          false,
		ContinueOnError: false,
		Console:         DefaultConsoleConfig(),
		Vcs:             DefaultVcsConfig(),
	}
}

// LoadConfig loads configuration from path. A missing file is not an error:
// it returns defaults with environment overrides applied, mirroring the
// teacher's LoadConfig fall-through-to-defaults behavior.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Only keys present in the file override defaults (a present zero value
	// still overrides), so an omitted section keeps its default rather than
	// zeroing out.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if _, ok := rawMap["max_concurrency"]; ok {
		cfg.MaxConcurrency = fileCfg.MaxConcurrency
	}
	if _, ok := rawMap["timeout"]; ok {
		cfg.Timeout = fileCfg.Timeout
	}
	if _, ok := rawMap["log_level"]; ok {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if _, ok := rawMap["log_dir"]; ok {
		cfg.LogDir = fileCfg.LogDir
	}
	if _, ok := rawMap["dry_run"]; ok {
		cfg.DryRun = fileCfg.DryRun
	}
	if _, ok := rawMap["continue_on_error"]; ok {
		cfg.ContinueOnError = fileCfg.ContinueOnError
	}

	if consoleSection, ok := rawMap["console"].(map[string]interface{}); ok {
		mergeConsole(&cfg.Console, fileCfg.Console, consoleSection)
	}
	if vcsSection, ok := rawMap["vcs"].(map[string]interface{}); ok {
		mergeVcs(&cfg.Vcs, fileCfg.Vcs, vcsSection)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func mergeConsole(dst *ConsoleConfig, parsed ConsoleConfig, present map[string]interface{}) {
	if _, ok := present["enable_color"]; ok {
		dst.EnableColor = parsed.EnableColor
	}
	if _, ok := present["enable_progress_bar"]; ok {
		dst.EnableProgressBar = parsed.EnableProgressBar
	}
	if _, ok := present["show_task_details"]; ok {
		dst.ShowTaskDetails = parsed.ShowTaskDetails
	}
	if _, ok := present["compact_mode"]; ok {
		dst.CompactMode = parsed.CompactMode
	}
	if _, ok := present["show_durations"]; ok {
		dst.ShowDurations = parsed.ShowDurations
	}
}

func mergeVcs(dst *VcsConfig, parsed VcsConfig, present map[string]interface{}) {
	if _, ok := present["branch_prefix"]; ok {
		dst.BranchPrefix = parsed.BranchPrefix
	}
	if _, ok := present["shadow_path"]; ok {
		dst.ShadowPath = parsed.ShadowPath
	}
	if _, ok := present["cleanup_on_success"]; ok {
		dst.CleanupOnSuccess = parsed.CleanupOnSuccess
	}
	if _, ok := present["cleanup_on_failure"]; ok {
		dst.CleanupOnFailure = parsed.CleanupOnFailure
	}
	if _, ok := present["conflict_strategy"]; ok {
		dst.ConflictStrategy = parsed.ConflictStrategy
	}
	if _, ok := present["submit_stack"]; ok {
		dst.SubmitStack = parsed.SubmitStack
	}
	if _, ok := present["draft"]; ok {
		dst.Draft = parsed.Draft
	}
	if _, ok := present["auto_merge"]; ok {
		dst.AutoMerge = parsed.AutoMerge
	}
}

// applyEnvOverrides applies CHOPSTACK_* environment variables, taking
// precedence over both defaults and file values, mirroring the teacher's
// applyConsoleEnvOverrides idiom.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CHOPSTACK_CONSOLE_COLOR"); val != "" {
		cfg.Console.EnableColor = val == "true" || val == "1"
	}
	if val := os.Getenv("CHOPSTACK_CONSOLE_COMPACT"); val != "" {
		cfg.Console.CompactMode = val == "true" || val == "1"
	}
	if val := os.Getenv("CHOPSTACK_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("CHOPSTACK_CONFLICT_STRATEGY"); val != "" {
		cfg.Vcs.ConflictStrategy = val
	}
	if val := os.Getenv("CHOPSTACK_MAX_CONCURRENCY"); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			cfg.MaxConcurrency = n
		}
	}
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values.
func (c *Config) MergeWithFlags(maxConcurrency *int, timeout *time.Duration, dryRun *bool, continueOnError *bool, conflictStrategy *string) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
	if continueOnError != nil {
		c.ContinueOnError = *continueOnError
	}
	if conflictStrategy != nil {
		c.Vcs.ConflictStrategy = *conflictStrategy
	}
}

// Validate checks configuration values spec.md §6 and §4.5 constrain.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	if strings.TrimSpace(c.Vcs.BranchPrefix) == "" {
		return fmt.Errorf("vcs.branch_prefix cannot be empty")
	}
	if strings.TrimSpace(c.Vcs.ShadowPath) == "" {
		return fmt.Errorf("vcs.shadow_path cannot be empty")
	}
	validStrategies := map[string]bool{"auto": true, "manual": true, "fail": true}
	if !validStrategies[c.Vcs.ConflictStrategy] {
		return fmt.Errorf("vcs.conflict_strategy must be one of: auto, manual, fail; got %q", c.Vcs.ConflictStrategy)
	}

	return nil
}
