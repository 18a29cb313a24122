// Package engine drives a validated Plan through its execution layers:
// per-layer worktree creation, bounded-concurrency dispatch through the
// orchestrator, commit integration, retry-with-enriched-prompt on failure,
// recursive skip of unretried failures' dependents, and a final stack
// assembly pass — spec.md §4.6's execution engine.
//
// Grounded on the teacher's internal/executor/wave.go: the peel-one-layer-
// at-a-time driver loop, the semaphore-bounded goroutine fan-out (collecting
// outcomes in an indexed slice instead of the teacher's buffered result
// channel), and the skip-on-failure propagation shape are
// all adapted from WaveExecutor.executeWave, generalized from the teacher's
// wave/task-number model to chopstack's DAG-layer/task-id model and
// stripped of the teacher's budget/guard-protocol/anomaly-monitor/package-
// guard machinery, none of which spec.md §4.6 calls for.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/orchestrator"
	"github.com/harrison/conductor/internal/vcs"
	"github.com/harrison/conductor/internal/vcsengine"
)

// Options configures one engine run, per spec.md §4.6's input contract.
type Options struct {
	Mode             models.PlanMode
	Workdir          string
	ContinueOnError  bool
	DryRun           bool
	MaxConcurrency   int // caller-provided cap; 0 means unbounded (plan's own cap still applies)
	CleanupOnSuccess bool
	CleanupOnFailure bool
	ConflictStrategy vcsengine.ConflictStrategy
	SubmitStack      bool
}

// Engine ties the DAG validator, VCS engine, and orchestrator together into
// the full per-layer execution algorithm.
type Engine struct {
	Orchestrator *orchestrator.Orchestrator
	VcsEngine    *vcsengine.Engine
	Backend      vcs.Backend
	Bus          *eventbus.Bus
	Enhancer     vcsengine.CommitMessageEnhancer
	RetryBuilder RetryBuilder
	Options      Options
}

// New constructs an Engine with DefaultRetryBuilder if retryBuilder is nil.
func New(orch *orchestrator.Orchestrator, vcsEng *vcsengine.Engine, backend vcs.Backend, bus *eventbus.Bus, enhancer vcsengine.CommitMessageEnhancer, retryBuilder RetryBuilder, opts Options) *Engine {
	if retryBuilder == nil {
		retryBuilder = DefaultRetryBuilder
	}
	return &Engine{
		Orchestrator: orch,
		VcsEngine:    vcsEng,
		Backend:      backend,
		Bus:          bus,
		Enhancer:     enhancer,
		RetryBuilder: retryBuilder,
		Options:      opts,
	}
}

// taskRuntime tracks the per-task mutable state the engine threads through
// retries, independent of models.Task's own state machine (which the
// engine also updates as a side effect, for external observers).
type taskRuntime struct {
	task         *models.Task
	touchedFiles map[string]struct{}
	lastError    string
	commitHash   string
	status       models.TaskStatus
	duration     time.Duration
}

// Run executes plan per spec.md §4.6: compute layers, then for each layer
// create worktrees, dispatch concurrently, integrate successful commits,
// retry or skip failures, and finally assemble the stack from every
// successful task.
func (e *Engine) Run(ctx context.Context, plan *models.Plan, trunkRef string) (*models.ExecutionResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}

	start := time.Now()
	result := &models.ExecutionResult{}

	execPlan := dag.CalculateLayers(plan.Tasks)
	e.logf("plan:summary layers=%d maxParallelism=%d criticalPath=%d",
		len(execPlan.Layers), execPlan.MaxParallelism, execPlan.CriticalPathLength)

	runtimes := make(map[string]*taskRuntime, len(plan.Tasks))
	for i := range plan.Tasks {
		t := &plan.Tasks[i]
		runtimes[t.ID] = &taskRuntime{task: t, touchedFiles: make(map[string]struct{})}
	}

	skipped := make(map[string]bool)
	integrationRef := trunkRef
	halted := false

	for _, layer := range execPlan.Layers {
		if halted {
			break
		}

		layerTasks := make([]models.Task, 0, len(layer.Tasks))
		for _, id := range layer.Tasks {
			if skipped[id] {
				result.Tasks = append(result.Tasks, models.TaskExecutionRecord{TaskID: id, Status: models.TaskStatusSkipped})
				continue
			}
			layerTasks = append(layerTasks, *runtimes[id].task)
		}
		if len(layerTasks) == 0 {
			continue
		}

		if e.Options.Mode == models.ModeValidate {
			for _, t := range layerTasks {
				result.Tasks = append(result.Tasks, models.TaskExecutionRecord{TaskID: t.ID, Status: models.TaskStatusSuccess})
			}
			continue
		}

		worktrees, err := e.VcsEngine.CreateWorktreesForTasks(ctx, layerTasks, integrationRef, e.Options.Workdir)
		if err != nil {
			return result, fmt.Errorf("create worktrees: %w", err)
		}
		wcByTask := make(map[string]models.WorktreeContext, len(worktrees))
		for _, wc := range worktrees {
			wcByTask[wc.TaskID] = wc
		}

		toRun := layerTasks
		for len(toRun) > 0 {
			outcomes := e.dispatchLayer(ctx, toRun, wcByTask, plan)

			var retryBatch []models.Task
			for _, o := range outcomes {
				rt := runtimes[o.TaskID]
				if o.result.Status == orchestrator.StatusSuccess {
					wc := wcByTask[o.TaskID]
					hash, commitErr := vcsengine.IntegrateCommit(ctx, e.Backend, e.Bus, e.Enhancer, *rt.task, wc, o.result.FilesChanged)
					if commitErr != nil {
						rt.lastError = commitErr.Error()
						if retried, task := e.maybeRetry(rt); retried {
							retryBatch = append(retryBatch, task)
							continue
						}
						rt.status = models.TaskStatusFailure
						rt.duration = o.result.Duration
						e.recordFailure(result, runtimes, skipped, rt, &halted)
						continue
					}
					rt.commitHash = hash
					rt.task.CommitHash = hash
					rt.task.BranchName = wc.BranchName
					rt.status = models.TaskStatusSuccess
					rt.duration = o.result.Duration
					result.Tasks = append(result.Tasks, models.TaskExecutionRecord{
						TaskID: o.TaskID, Status: models.TaskStatusSuccess, Duration: o.result.Duration, CommitHash: hash,
					})
					result.Commits = append(result.Commits, hash)
					continue
				}

				rt.lastError = o.result.Error
				for _, f := range o.result.FilesChanged {
					rt.touchedFiles[f] = struct{}{}
				}
				if retried, task := e.maybeRetry(rt); retried {
					retryBatch = append(retryBatch, task)
					continue
				}
				rt.status = models.TaskStatusFailure
				rt.duration = o.result.Duration
				e.recordFailure(result, runtimes, skipped, rt, &halted)
			}

			toRun = retryBatch
			if halted {
				break
			}
		}

		if halted {
			break
		}

		integratedTasks := make([]models.Task, 0, len(layerTasks))
		for _, t := range layerTasks {
			if skipped[t.ID] {
				continue
			}
			integratedTasks = append(integratedTasks, *runtimes[t.ID].task)
		}

		stackResult, err := vcsengine.BuildStackFromTasks(ctx, e.Backend, e.Bus, e.Options.Workdir, integratedTasks, vcsengine.StackBuildOptions{
			ParentRef:        integrationRef,
			ConflictStrategy: e.Options.ConflictStrategy,
		})
		if err != nil {
			return result, fmt.Errorf("assemble stack for layer %d: %w", layer.Index, err)
		}
		if len(stackResult.Branches) > 0 {
			integrationRef = stackResult.Branches[len(stackResult.Branches)-1]
			result.Branches = append(result.Branches, stackResult.Branches...)
		}
	}

	if !halted && !e.Options.DryRun && e.Options.Mode != models.ModeValidate && e.Options.SubmitStack && len(result.Branches) > 0 {
		urls, err := e.Backend.Submit(ctx, e.Options.Workdir, vcs.SubmitOptions{Branches: result.Branches})
		if err == nil {
			result.PRUrls = urls
		} else {
			result.PRUrls = []string{}
		}
	}

	result.TotalDuration = time.Since(start)
	e.logf("execution:done duration=%s", result.TotalDuration)
	return result, nil
}

func (e *Engine) maybeRetry(rt *taskRuntime) (bool, models.Task) {
	if rt.task.RetryCount >= rt.task.MaxRetries {
		return false, models.Task{}
	}
	rt.task.ResetForRetry(time.Now(), rt.lastError)
	files := make([]string, 0, len(rt.touchedFiles))
	for f := range rt.touchedFiles {
		files = append(files, f)
	}
	sort.Strings(files)
	rt.task.Description = e.RetryBuilder(rt.task.Description, rt.lastError, files)
	if e.Bus != nil {
		e.Bus.Publish(eventbus.TopicLog, eventbus.LogPayload{
			Level:   "INFO",
			Message: fmt.Sprintf("retrying task %s (attempt %d): %s", rt.task.ID, rt.task.RetryCount, rt.lastError),
		})
	}
	return true, *rt.task
}

// recordFailure marks rt as failed in result and recursively skips every
// transitive dependent of rt.task within the plan, per spec.md §4.6 step 3g.
// If ContinueOnError is false, it sets *halted to stop the engine after
// this layer.
func (e *Engine) recordFailure(result *models.ExecutionResult, runtimes map[string]*taskRuntime, skipped map[string]bool, rt *taskRuntime, halted *bool) {
	result.Tasks = append(result.Tasks, models.TaskExecutionRecord{
		TaskID: rt.task.ID, Status: models.TaskStatusFailure, Duration: rt.duration, Error: rt.lastError,
	})

	dependents := make(map[string]bool)
	for id, other := range runtimes {
		if _, dependsOn := other.task.Dependencies[rt.task.ID]; dependsOn {
			dependents[id] = true
		}
	}
	var skipDependents func(id string)
	skipDependents = func(id string) {
		if skipped[id] {
			return
		}
		skipped[id] = true
		for otherID, other := range runtimes {
			if _, dependsOn := other.task.Dependencies[id]; dependsOn {
				skipDependents(otherID)
			}
		}
	}
	for id := range dependents {
		skipDependents(id)
	}

	if !e.Options.ContinueOnError {
		*halted = true
	}
}

type dispatchOutcome struct {
	TaskID string
	result *orchestrator.TaskResult
}

// dispatchLayer runs tasks concurrently through the orchestrator, bounded by
// the smaller of plan.MaxParallelization and Options.MaxConcurrency (zero
// meaning unbounded), per spec.md §4.6 step 3c.
func (e *Engine) dispatchLayer(ctx context.Context, tasks []models.Task, worktrees map[string]models.WorktreeContext, plan *models.Plan) []dispatchOutcome {
	limit := len(tasks)
	if plan.MaxParallelization > 0 && plan.MaxParallelization < limit {
		limit = plan.MaxParallelization
	}
	if e.Options.MaxConcurrency > 0 && e.Options.MaxConcurrency < limit {
		limit = e.Options.MaxConcurrency
	}
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	outcomes := make([]dispatchOutcome, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, task models.Task) {
			defer wg.Done()
			defer func() { <-sem }()

			wc := worktrees[task.ID]
			spec := orchestrator.TaskSpec{
				TaskID:  task.ID,
				Title:   task.Name,
				Prompt:  task.Description,
				Files:   task.Files,
				Workdir: wc.AbsolutePath,
			}
			result, err := e.Orchestrator.Execute(ctx, spec)
			if err != nil {
				result = &orchestrator.TaskResult{TaskID: task.ID, Status: orchestrator.StatusFailed, Error: err.Error()}
			}
			outcomes[i] = dispatchOutcome{TaskID: task.ID, result: result}
		}(i, task)
	}

	wg.Wait()
	return outcomes
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Bus == nil {
		return
	}
	e.Bus.Publish(eventbus.TopicLog, eventbus.LogPayload{Level: "INFO", Message: fmt.Sprintf(format, args...)})
}
