// Package orchestrator drives one task through an execution adapter
// subprocess: publishing lifecycle events, forwarding its streamed output,
// and enforcing the soft (inactivity) and hard (wall-clock) timeouts
// spec.md §4.3 requires.
//
// Grounded on the teacher's internal/agent/invoker.go, generalized from a
// single synchronous "run the CLI, parse one JSON blob" invocation into a
// streaming line-delimited-JSON reader, since spec.md's adapter contract
// (§6) is a stream of StreamEvent tokens plus a final result rather than
// one shot of JSON on exit.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/models"
)

// TaskStatus is the terminal outcome of one orchestrator invocation.
type TaskStatus string

const (
	StatusSuccess   TaskStatus = "success"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// TaskSpec is the input contract spec.md §4.3 describes:
// {taskId, title, prompt, files, workdir}.
type TaskSpec struct {
	TaskID  string
	Title   string
	Prompt  string
	Files   []string
	Workdir string
}

// TaskResult is the OrchestratorTaskResult spec.md §4.3 describes.
type TaskResult struct {
	TaskID       string
	Status       TaskStatus
	Duration     time.Duration
	Error        string
	FilesChanged []string
}

// Adapter is the opaque coding-agent adapter contract from spec.md §6: given
// a prompt, a working directory, and a task id, it streams StreamEvent
// tokens to onEvent as they arrive and returns a final synchronous result
// once its subprocess exits. Implementations are expected to read the
// prompt from standard input to accommodate large prompts.
type Adapter interface {
	Run(ctx context.Context, spec TaskSpec, onEvent func(models.StreamEvent)) (*models.AdapterResult, error)
}

// Timeouts configures the soft (inactivity) and hard (wall-clock) limits
// enforced per task.
type Timeouts struct {
	// Soft is reset every time a stream event arrives; if it elapses with
	// no event, the task is treated as failed due to inactivity.
	Soft time.Duration
	// Hard bounds the task's total wall-clock time regardless of activity.
	Hard time.Duration
}

// DefaultTimeouts mirrors the adapter-specific inactivity/wall-clock
// defaults chopstack ships with absent per-task configuration.
func DefaultTimeouts() Timeouts {
	return Timeouts{Soft: 5 * time.Minute, Hard: 45 * time.Minute}
}

type runningHandle struct {
	cancel context.CancelFunc
}

// Orchestrator executes tasks through an Adapter, publishing lifecycle
// events to a Bus per spec.md §4.3 and tracking running tasks in a
// mutex-guarded map keyed by task id.
type Orchestrator struct {
	adapter  Adapter
	bus      *eventbus.Bus
	timeouts Timeouts

	mu      sync.Mutex
	running map[string]*runningHandle
}

// New constructs an Orchestrator around adapter, publishing lifecycle
// events to bus.
func New(adapter Adapter, bus *eventbus.Bus, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		adapter:  adapter,
		bus:      bus,
		timeouts: timeouts,
		running:  make(map[string]*runningHandle),
	}
}

// Execute runs spec through the adapter to completion, following spec.md
// §4.3's six-step per-task contract. The returned TaskResult always has a
// terminal Status; Execute itself never returns a non-nil error except
// for a task id already in flight.
func (o *Orchestrator) Execute(ctx context.Context, spec TaskSpec) (*TaskResult, error) {
	if err := o.register(spec.TaskID); err != nil {
		return nil, err
	}
	defer o.unregister(spec.TaskID)

	start := time.Now()
	o.bus.Publish(eventbus.TopicTaskStart, eventbus.TaskStartPayload{
		Task:    models.NewTask(spec.TaskID, spec.Title, spec.Prompt),
		Context: map[string]interface{}{"files": spec.Files, "workdir": spec.Workdir},
	})

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.running[spec.TaskID] = &runningHandle{cancel: cancel}
	o.mu.Unlock()
	defer cancel()

	watchdog := newWatchdog(runCtx, cancel, o.timeouts)
	defer watchdog.stop()

	result, err := o.adapter.Run(runCtx, spec, func(evt models.StreamEvent) {
		watchdog.touch()
		o.bus.Publish(eventbus.TopicStreamData, eventbus.StreamDataPayload{TaskID: spec.TaskID, Event: evt})
	})

	duration := time.Since(start)

	switch {
	case watchdog.timedOut():
		return o.finishFailed(spec.TaskID, duration, watchdog.timeoutReason()), nil
	case runCtx.Err() != nil:
		// Cancelled via Cancel/CancelAll, not a watchdog timeout.
		return o.finishCancelled(spec.TaskID, duration), nil
	case err != nil:
		return o.finishFailed(spec.TaskID, duration, err.Error()), nil
	case result == nil:
		return o.finishFailed(spec.TaskID, duration, "adapter returned no result"), nil
	case result.ExitCode != 0:
		reason := result.Stderr
		if reason == "" {
			reason = fmt.Sprintf("adapter exited with code %d", result.ExitCode)
		}
		return o.finishFailed(spec.TaskID, duration, reason), nil
	default:
		o.bus.Publish(eventbus.TopicTaskComplete, eventbus.TaskCompletePayload{
			TaskID: spec.TaskID, Success: true, FilesChanged: result.FilesChanged,
		})
		return &TaskResult{TaskID: spec.TaskID, Status: StatusSuccess, Duration: duration, FilesChanged: result.FilesChanged}, nil
	}
}

func (o *Orchestrator) finishFailed(taskID string, duration time.Duration, reason string) *TaskResult {
	o.bus.Publish(eventbus.TopicTaskFailed, eventbus.TaskFailedPayload{TaskID: taskID, Error: reason})
	return &TaskResult{TaskID: taskID, Status: StatusFailed, Duration: duration, Error: reason}
}

func (o *Orchestrator) finishCancelled(taskID string, duration time.Duration) *TaskResult {
	o.bus.Publish(eventbus.TopicTaskFailed, eventbus.TaskFailedPayload{TaskID: taskID, Error: "cancelled"})
	return &TaskResult{TaskID: taskID, Status: StatusCancelled, Duration: duration, Error: "cancelled"}
}

// Cancel signals the running task identified by taskID to terminate. Its
// adapter subprocess receives a terminate signal via context cancellation;
// Execute then publishes task:failed with reason "cancelled" and returns.
// A no-op if taskID is not currently running.
func (o *Orchestrator) Cancel(taskID string) {
	o.mu.Lock()
	handle, ok := o.running[taskID]
	o.mu.Unlock()
	if ok && handle.cancel != nil {
		handle.cancel()
	}
}

// CancelAll signals every currently running task to terminate, for an
// engine-wide cancellation.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	handles := make([]*runningHandle, 0, len(o.running))
	for _, h := range o.running {
		handles = append(handles, h)
	}
	o.mu.Unlock()
	for _, h := range handles {
		if h.cancel != nil {
			h.cancel()
		}
	}
}

func (o *Orchestrator) register(taskID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.running[taskID]; exists {
		return fmt.Errorf("task %s is already running", taskID)
	}
	o.running[taskID] = &runningHandle{}
	return nil
}

func (o *Orchestrator) unregister(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, taskID)
}
