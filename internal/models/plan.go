package models

import "fmt"

// PhaseStrategy controls how the tasks within a phase relate to each other.
type PhaseStrategy string

const (
	PhaseSequential PhaseStrategy = "sequential"
	PhaseParallel   PhaseStrategy = "parallel"
)

// Phase is an optional grouping of tasks with its own intra-phase strategy
// and inter-phase dependencies.
type Phase struct {
	ID       string
	Name     string
	Strategy PhaseStrategy
	Tasks    []string        // ordered task ids, must all exist in the plan
	Requires map[string]struct{} // set of phase ids
}

// PlanStrategy is the top-level execution strategy a plan declares.
type PlanStrategy string

const (
	StrategySequential     PlanStrategy = "sequential"
	StrategyParallel       PlanStrategy = "parallel"
	StrategyPhasedParallel PlanStrategy = "phased-parallel"
)

// PlanMode selects what running the plan actually does: plan prints the
// computed layers without executing anything, execute runs it for real,
// validate runs only the DAG validator.
type PlanMode string

const (
	ModePlan     PlanMode = "plan"
	ModeExecute  PlanMode = "execute"
	ModeValidate PlanMode = "validate"
)

// Plan is a named, validated graph of tasks with optional phase grouping.
type Plan struct {
	Name           string
	Strategy       PlanStrategy
	Phases         []Phase
	Tasks          []Task
	SuccessMetrics []string
	Mode           PlanMode

	// MaxParallelization caps how many tasks within a single layer the
	// engine will dispatch concurrently. Zero means unbounded (limited only
	// by a caller-provided cap).
	MaxParallelization int

	// FilePath is the plan's origin on disk, used for multi-file merges and
	// for writing back runtime state.
	FilePath string
}

// TaskByID returns a pointer into p.Tasks for the task with the given id,
// or nil if no such task exists. The pointer aliases the plan's own slice
// so callers may mutate runtime state in place.
func (p *Plan) TaskByID(id string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// PhaseByID returns the phase with the given id, or nil.
func (p *Plan) PhaseByID(id string) *Phase {
	for i := range p.Phases {
		if p.Phases[i].ID == id {
			return &p.Phases[i]
		}
	}
	return nil
}

// Validate performs the structural checks from spec.md §4.1 step 1 over the
// plan shape itself (non-empty tasks, phase task references resolve). Graph
// level checks (cycles, conflicts, dangling dependencies) live in the dag
// package, which consumes this as a precondition.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(p.Tasks) == 0 {
		return fmt.Errorf("plan must declare at least one task")
	}
	for i := range p.Phases {
		ph := &p.Phases[i]
		if ph.ID == "" {
			return fmt.Errorf("phase at index %d: id is required", i)
		}
		if len(ph.Tasks) == 0 {
			return fmt.Errorf("phase %s: must reference at least one task", ph.ID)
		}
		switch ph.Strategy {
		case PhaseSequential, PhaseParallel:
		default:
			return fmt.Errorf("phase %s: strategy %q must be sequential or parallel", ph.ID, ph.Strategy)
		}
		for _, taskID := range ph.Tasks {
			if p.TaskByID(taskID) == nil {
				return fmt.Errorf("phase %s: references unknown task %s", ph.ID, taskID)
			}
		}
		for req := range ph.Requires {
			if p.PhaseByID(req) == nil {
				return fmt.Errorf("phase %s: requires unknown phase %s", ph.ID, req)
			}
		}
	}
	return nil
}
