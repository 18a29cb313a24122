package dag

import (
	"sort"

	"github.com/harrison/conductor/internal/models"
)

// ExecutionLayer is one wave of tasks that can run concurrently: every task
// in a layer has all of its dependencies satisfied by tasks in strictly
// earlier layers.
type ExecutionLayer struct {
	Index int
	Tasks []string
}

// ExecutionPlan is the layered schedule CalculateLayers produces, plus the
// summary metrics spec.md §4.1 asks the validator to surface: the longest
// chain of sequentially-dependent tasks (the critical path) and the maximum
// number of tasks any single layer can run concurrently.
type ExecutionPlan struct {
	Layers              []ExecutionLayer
	CriticalPathLength  int
	MaxParallelism      int
}

// CalculateLayers computes the execution-layer schedule for a plan's tasks
// using Kahn's algorithm: repeatedly peel off every task whose dependencies
// have all already been placed in an earlier layer. Ties within a layer are
// broken by task id for determinism.
//
// Grounded on the teacher's internal/executor/graph.go CalculateWaves, which
// performs the identical peel-off-zero-indegree loop over its
// DependencyGraph; generalized here to operate directly on models.Task ids
// rather than the teacher's task-number/Wave/GroupInfo types.
//
// CalculateLayers assumes the task graph is already known to be acyclic and
// fully resolved (callers should run ValidatePlan first); tasks whose
// dependencies are missing or cyclic are simply never scheduled and are
// omitted from the result.
func CalculateLayers(tasks []models.Task) *ExecutionPlan {
	taskByID := make(map[string]*models.Task, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))

	for i := range tasks {
		t := &tasks[i]
		taskByID[t.ID] = t
		inDegree[t.ID] = 0
	}
	for _, t := range tasks {
		for dep := range t.Dependencies {
			if _, ok := taskByID[dep]; !ok {
				continue // dangling dependency; reported by ValidatePlan, not scheduled here
			}
			inDegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	remaining := make(map[string]int, len(inDegree))
	for id, d := range inDegree {
		remaining[id] = d
	}

	var layers []ExecutionLayer
	placed := make(map[string]bool, len(tasks))

	for len(placed) < len(taskByID) {
		var ready []string
		for id := range taskByID {
			if placed[id] || remaining[id] > 0 {
				continue
			}
			ready = append(ready, id)
		}
		if len(ready) == 0 {
			break // remaining tasks are part of a cycle; nothing more can be scheduled
		}
		sort.Strings(ready)

		for _, id := range ready {
			placed[id] = true
		}
		for _, id := range ready {
			for _, dependent := range dependents[id] {
				remaining[dependent]--
			}
		}

		layers = append(layers, ExecutionLayer{Index: len(layers), Tasks: ready})
	}

	maxParallelism := 0
	for _, l := range layers {
		if len(l.Tasks) > maxParallelism {
			maxParallelism = len(l.Tasks)
		}
	}

	return &ExecutionPlan{
		Layers:             layers,
		CriticalPathLength: len(layers),
		MaxParallelism:     maxParallelism,
	}
}

// LayerOf returns the index of the layer containing taskID, or -1 if the
// task was not scheduled (e.g. because it sits in a cycle).
func (p *ExecutionPlan) LayerOf(taskID string) int {
	for _, l := range p.Layers {
		for _, id := range l.Tasks {
			if id == taskID {
				return l.Index
			}
		}
	}
	return -1
}
