// Package models holds the plan, task, and execution-result types shared
// across chopstack's DAG validator, orchestrator, and VCS engine.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Complexity is the coarse size estimate a decomposer assigns to a task.
// Its numeric form is Weight; dag.CalculateLayers does not use it (its
// critical-path length counts layers).
type Complexity string

const (
	ComplexityXS Complexity = "XS"
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

// Weight returns the relative unit-of-work weight of a complexity tier.
// Larger complexities weigh more. dag.CalculateLayers does not use it; its
// critical-path length is a layer count.
func (c Complexity) Weight() int {
	switch c {
	case ComplexityXS:
		return 1
	case ComplexityS:
		return 2
	case ComplexityM:
		return 3
	case ComplexityL:
		return 5
	case ComplexityXL:
		return 8
	default:
		return 0
	}
}

// Valid reports whether c is one of the five recognized complexity tiers.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityXS, ComplexityS, ComplexityM, ComplexityL, ComplexityXL:
		return true
	default:
		return false
	}
}

// TaskState is a task's position in its execution lifecycle.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskReady     TaskState = "ready"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskSkipped   TaskState = "skipped"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether s is a state from which a task never transitions
// again within a single execution run.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	default:
		return false
	}
}

// StateTransition is one entry in a task's append-only state history.
type StateTransition struct {
	From      TaskState
	To        TaskState
	At        time.Time
	Reason    string
}

// Task is the immutable description of a unit of work plus its mutable
// runtime state as the execution engine drives it through the lifecycle.
type Task struct {
	// Identity
	ID string // kebab-case, unique within the plan

	// Descriptive
	Name               string
	Description        string // min 50 chars, enforced by the DAG validator
	Complexity         Complexity
	AcceptanceCriteria []string

	// Scope
	Files []string // relative paths this task may touch

	// Structure
	Dependencies map[string]struct{} // set of task ids
	Phase        string              // optional phase id

	// Runtime state, owned exclusively by the execution engine
	State        TaskState
	RetryCount   int
	MaxRetries   int
	StateHistory []StateTransition
	CommitHash   string
	BranchName   string
	WorktreePath string
}

// NewTask constructs a Task in the pending state with an initialized
// dependency set, mirroring how a decomposer would hand it to the validator.
func NewTask(id, name, description string) Task {
	return Task{
		ID:           id,
		Name:         name,
		Description:  description,
		Dependencies: make(map[string]struct{}),
		State:        TaskPending,
	}
}

// DependsOnSlice returns the task's dependency ids as a slice in map
// iteration order, which can differ between calls. Callers that need
// determinism sort the result themselves (stack assembly's topological
// ordering does).
func (t *Task) DependsOnSlice() []string {
	out := make([]string, 0, len(t.Dependencies))
	for dep := range t.Dependencies {
		out = append(out, dep)
	}
	return out
}

// AddDependency registers dep as a prerequisite of t.
func (t *Task) AddDependency(dep string) {
	if t.Dependencies == nil {
		t.Dependencies = make(map[string]struct{})
	}
	t.Dependencies[dep] = struct{}{}
}

// Validate checks the structural requirements spec.md §4.1 imposes on a
// single task, independent of its relationship to the rest of the plan.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("task %s: name is required", t.ID)
	}
	if len(t.Description) < 50 {
		return fmt.Errorf("task %s: description must be at least 50 characters, got %d", t.ID, len(t.Description))
	}
	if !t.Complexity.Valid() {
		return fmt.Errorf("task %s: complexity %q is not one of XS, S, M, L, XL", t.ID, t.Complexity)
	}
	if len(t.Files) == 0 {
		return fmt.Errorf("task %s: files list must not be empty", t.ID)
	}
	return nil
}

// transition appends a StateTransition and updates State, recording now as
// the transition time and reason as a short human-readable cause.
func (t *Task) transition(to TaskState, now time.Time, reason string) {
	t.StateHistory = append(t.StateHistory, StateTransition{
		From:   t.State,
		To:     to,
		At:     now,
		Reason: reason,
	})
	t.State = to
}

// MarkReady promotes a pending task to ready; the caller (the execution
// engine) is responsible for having confirmed all dependencies completed.
func (t *Task) MarkReady(now time.Time) {
	t.transition(TaskReady, now, "dependencies satisfied")
}

// MarkRunning promotes a ready task to running, once it has been dispatched
// to the orchestrator.
func (t *Task) MarkRunning(now time.Time) {
	t.transition(TaskRunning, now, "dispatched to orchestrator")
}

// MarkTerminal transitions a running task to one of the four terminal
// states, recording reason for diagnostics.
func (t *Task) MarkTerminal(state TaskState, now time.Time, reason string) error {
	if !state.Terminal() {
		return fmt.Errorf("task %s: %q is not a terminal state", t.ID, state)
	}
	t.transition(state, now, reason)
	return nil
}

// ResetForRetry returns a task to ready, incrementing RetryCount. Callers
// must have already checked RetryCount < MaxRetries.
func (t *Task) ResetForRetry(now time.Time, reason string) {
	t.RetryCount++
	t.transition(TaskReady, now, reason)
}
