package cli

import (
	"fmt"
	"time"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/planio"
	"github.com/harrison/conductor/internal/vcs"
	"github.com/harrison/conductor/internal/vcsengine"
)

// loadPlan parses a single plan file or a directory of split-plan files at
// path, the way the teacher's run.go branches between a direct single-file
// parse and a filter-and-merge multi-file parse — planio.ParseFile already
// does both internally, so the dispatch collapses to one call.
func loadPlan(path string) (*models.Plan, error) {
	plan, err := planio.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", path, err)
	}
	return plan, nil
}

// loadConfig loads chopstack's run configuration from configPath, falling
// back to defaults if the file does not exist, and applies the CLI's
// flag overrides on top.
func loadConfig(configPath string, maxConcurrency *int, timeout *time.Duration, dryRun *bool, continueOnError *bool, conflictStrategy *string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.MergeWithFlags(maxConcurrency, timeout, dryRun, continueOnError, conflictStrategy)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildBackend selects the vcs.Backend named by kind ("git" or "stacked"),
// mirroring spec.md §4.4's two concrete backend variants.
func buildBackend(kind, stackCLI string) (vcs.Backend, error) {
	switch kind {
	case "", "git":
		return vcs.NewGitBackend(), nil
	case "stacked":
		return vcs.NewStackedBackend(stackCLI), nil
	default:
		return nil, fmt.Errorf("unknown vcs backend %q (want \"git\" or \"stacked\")", kind)
	}
}

func conflictStrategyFromConfig(raw string) vcsengine.ConflictStrategy {
	switch raw {
	case string(vcsengine.ConflictManual):
		return vcsengine.ConflictManual
	case string(vcsengine.ConflictFail):
		return vcsengine.ConflictFail
	default:
		return vcsengine.ConflictAuto
	}
}
