package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/engine"
	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/gates"
	"github.com/harrison/conductor/internal/history"
	"github.com/harrison/conductor/internal/logger"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/orchestrator"
	"github.com/harrison/conductor/internal/vcsengine"
)

// executeFlags holds execute's (and resume's) CLI-overridable settings,
// mirroring the teacher's run.go nil-able-pointer flag-merge pattern: a
// flag only overrides the config file's value when the user actually set
// it.
type executeFlags struct {
	configPath       string
	workdir          string
	agentCommand     string
	backendKind      string
	stackCLI         string
	maxConcurrency   int
	timeout          time.Duration
	dryRun           bool
	continueOnError  bool
	conflictStrategy string
	submitStack      bool
}

func newExecuteCommand() *cobra.Command {
	flags := &executeFlags{}

	cmd := &cobra.Command{
		Use:   "execute <plan-file>",
		Short: "Validate and run a plan's tasks through the execution engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args[0], flags, nil)
		},
	}
	bindExecuteFlags(cmd, flags)
	return cmd
}

func bindExecuteFlags(cmd *cobra.Command, flags *executeFlags) {
	cmd.Flags().StringVar(&flags.configPath, "config", ".chopstack/config.yaml", "path to config file")
	cmd.Flags().StringVar(&flags.workdir, "workdir", ".", "repository working directory")
	cmd.Flags().StringVar(&flags.agentCommand, "agent-cmd", "claude", "coding-agent CLI to invoke per task")
	cmd.Flags().StringVar(&flags.backendKind, "backend", "git", "vcs backend: git or stacked")
	cmd.Flags().StringVar(&flags.stackCLI, "stack-cli", "gt", "branch-stacking CLI used by the stacked backend")
	cmd.Flags().IntVar(&flags.maxConcurrency, "concurrency", 0, "max concurrent tasks per layer (0 = unlimited)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-task adapter timeout (0 = config default)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "validate and compute layers without dispatching tasks")
	cmd.Flags().BoolVar(&flags.continueOnError, "continue-on-error", false, "keep executing independent layers after a task fails")
	cmd.Flags().StringVar(&flags.conflictStrategy, "conflict-strategy", "", "auto, manual, or fail (default from config)")
	cmd.Flags().BoolVar(&flags.submitStack, "submit", false, "submit the assembled stack for review once execution completes")
}

// runExecute drives a full plan execution: load config, parse and
// validate the plan, wire the engine, run it, record history, and report
// a summary. When taskFilter is non-nil, only tasks whose ids are present
// are executed — the mechanism newResumeCommand uses to re-run an
// incomplete prior run.
func runExecute(cmd *cobra.Command, planPath string, flags *executeFlags, taskFilter map[string]bool) error {
	var maxConcurrency *int
	if cmd.Flags().Changed("concurrency") {
		maxConcurrency = &flags.maxConcurrency
	}
	var timeout *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeout = &flags.timeout
	}
	var dryRun *bool
	if cmd.Flags().Changed("dry-run") {
		dryRun = &flags.dryRun
	}
	var continueOnError *bool
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError = &flags.continueOnError
	}
	var conflictStrategy *string
	if cmd.Flags().Changed("conflict-strategy") {
		conflictStrategy = &flags.conflictStrategy
	}

	cfg, err := loadConfig(flags.configPath, maxConcurrency, timeout, dryRun, continueOnError, conflictStrategy)
	if err != nil {
		return err
	}

	plan, err := loadPlan(planPath)
	if err != nil {
		return err
	}

	if taskFilter != nil {
		filterPlanTasks(plan, taskFilter)
	}

	report := dag.ValidatePlan(plan)
	if !report.Valid {
		printValidationReport(cmd, planPath, report)
		return reportValidationFailure(report)
	}

	gate := gates.PostGenerationGate(plan, report)
	printGateWarnings(cmd, gate)
	if !gate.Clear() {
		return reportValidationFailure(report)
	}

	if cfg.DryRun {
		return printPlanLayers(cmd.OutOrStdout(), planPath)
	}

	backend, err := buildBackend(flags.backendKind, flags.stackCLI)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	logger.NewConsoleLogger(bus, cmd.OutOrStdout(), cfg.Console.EnableColor, cfg.LogLevel, cfg.Console.ShowDurations, cfg.Console.EnableProgressBar, len(plan.Tasks))

	fileLogger, err := logger.NewFileLogger(bus, cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("start file logger: %w", err)
	}
	defer fileLogger.Close()

	adapter := orchestrator.NewSubprocessAdapter(flags.agentCommand)
	timeouts := orchestrator.DefaultTimeouts()
	if cfg.Timeout > 0 {
		timeouts.Hard = cfg.Timeout
	}
	orch := orchestrator.New(adapter, bus, timeouts)
	vcsEng := vcsengine.New(backend, vcsengine.Config{BranchPrefix: cfg.Vcs.BranchPrefix, ShadowPath: cfg.Vcs.ShadowPath})

	eng := engine.New(orch, vcsEng, backend, bus, nil, nil, engine.Options{
		Mode:             models.ModeExecute,
		Workdir:          flags.workdir,
		ContinueOnError:  cfg.ContinueOnError,
		DryRun:           false,
		MaxConcurrency:   cfg.MaxConcurrency,
		CleanupOnSuccess: cfg.Vcs.CleanupOnSuccess,
		CleanupOnFailure: cfg.Vcs.CleanupOnFailure,
		ConflictStrategy: conflictStrategyFromConfig(cfg.Vcs.ConflictStrategy),
		SubmitStack:      flags.submitStack || cfg.Vcs.SubmitStack,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	started := time.Now()
	result, err := eng.Run(ctx, plan, "HEAD")
	if err != nil {
		return fmt.Errorf("execute plan: %w", err)
	}

	recordHistory(fileLogger.SessionID(), plan, planPath, started, result)

	completed, failed, skipped := result.Summarize()
	fmt.Fprintf(cmd.OutOrStdout(), "execution finished in %s: %d completed, %d failed, %d skipped\n",
		result.TotalDuration.Round(time.Millisecond), completed, failed, skipped)

	if failed > 0 {
		return fmt.Errorf("%d task(s) failed", failed)
	}
	return nil
}

// filterPlanTasks narrows plan.Tasks down to the ids present in keep,
// in place, preserving their original order.
func filterPlanTasks(plan *models.Plan, keep map[string]bool) {
	filtered := plan.Tasks[:0]
	for _, t := range plan.Tasks {
		if keep[t.ID] {
			filtered = append(filtered, t)
		}
	}
	plan.Tasks = filtered
}

// recordHistory persists the run to the history store under sessionID
// (the same id the file logger embedded in this run's log file name, so
// a recorded run and its log are always correlatable), logging but not
// failing the command if the store can't be opened or written — execution
// history is a convenience for `chopstack resume`, not a correctness
// requirement of the run itself.
func recordHistory(sessionID string, plan *models.Plan, planPath string, started time.Time, result *models.ExecutionResult) {
	dbPath, err := config.GetHistoryDBPath()
	if err != nil {
		return
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return
	}
	defer store.Close()

	_, _ = store.RecordRun(context.Background(), sessionID, plan.Name, planPath, started, result)
}
