// Package dag implements chopstack's static plan validator: schema checks,
// id uniqueness, dependency closure, cycle detection, parallel file-write
// conflict detection, and execution-layer computation.
//
// It is grounded on the teacher's internal/executor/graph.go, generalized
// from a single wave-overlap check into the full validation pipeline
// spec.md §4.1 describes.
package dag

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/harrison/conductor/internal/models"
)

// ValidationReport is the structured outcome of validating a plan, matching
// spec.md §4.1's ValidationReport shape.
type ValidationReport struct {
	Valid                bool
	Errors               []string
	CircularDependencies [][]string
	Conflicts            []string
	MissingDependencies  []string
	OrphanedTasks        []string
}

// recomputeValid sets Valid from the report's own validity invariant: valid iff no errors and no
// populated circular-dependency/conflict/missing-dependency lists. Used by
// ValidatePlan to compute Valid and by tests asserting spec.md §8's
// "valid = true iff errors = [] and none of the three lists is populated".
func (r *ValidationReport) recomputeValid() {
	r.Valid = len(r.Errors) == 0 &&
		len(r.CircularDependencies) == 0 &&
		len(r.Conflicts) == 0 &&
		len(r.MissingDependencies) == 0
}

// ValidatePlan runs the full static-check pipeline from spec.md §4.1 over a
// plan: structural checks, id uniqueness, dependency closure, cycle
// detection, file-conflict analysis, and orphan detection.
func ValidatePlan(plan *models.Plan) *ValidationReport {
	report := &ValidationReport{}

	if plan == nil {
		report.Errors = append(report.Errors, "plan is nil")
		report.recomputeValid()
		return report
	}

	// 1. Structural check (per-task, per-phase).
	for i := range plan.Tasks {
		if err := plan.Tasks[i].Validate(); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}
	if err := plan.Validate(); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	// 2. Id uniqueness.
	taskIDs := make(map[string]int, len(plan.Tasks))
	for _, t := range plan.Tasks {
		taskIDs[t.ID]++
	}
	for id, count := range taskIDs {
		if count > 1 {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate task id %q (%d occurrences)", id, count))
		}
	}
	phaseIDs := make(map[string]int, len(plan.Phases))
	for _, p := range plan.Phases {
		phaseIDs[p.ID]++
	}
	for id, count := range phaseIDs {
		if count > 1 {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate phase id %q (%d occurrences)", id, count))
		}
	}

	taskSet := make(map[string]bool, len(plan.Tasks))
	for _, t := range plan.Tasks {
		taskSet[t.ID] = true
	}

	// 3. Dependency closure.
	missingSet := make(map[string]bool)
	for _, t := range plan.Tasks {
		for dep := range t.Dependencies {
			if !taskSet[dep] {
				entry := fmt.Sprintf("task %s depends on non-existent task %s", t.ID, dep)
				if !missingSet[entry] {
					missingSet[entry] = true
					report.MissingDependencies = append(report.MissingDependencies, entry)
				}
			}
		}
	}
	sort.Strings(report.MissingDependencies)

	// 4. Cycle detection (DFS, three-colour marking).
	report.CircularDependencies = findCycles(plan.Tasks)

	// 5. File-conflict analysis, only meaningful once the graph is acyclic
	// and dependencies resolve — a cycle or dangling dependency makes
	// reachability ill-defined, so skip conflict analysis in that case.
	if len(report.CircularDependencies) == 0 && len(report.MissingDependencies) == 0 {
		report.Conflicts = findFileConflicts(plan.Tasks)
	}

	// 6. Orphan detection (informational only).
	if len(plan.Tasks) > 1 {
		report.OrphanedTasks = findOrphans(plan.Tasks)
	}

	report.recomputeValid()
	return report
}

// findCycles runs DFS with three-colour marking over the task dependency
// graph (dependent -> dep edges) and returns every back-edge's cycle path.
func findCycles(tasks []models.Task) [][]string {
	taskSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		taskSet[t.ID] = true
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(tasks))
	for _, t := range tasks {
		color[t.ID] = white
	}

	taskByID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}

	var cycles [][]string
	var stack []string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		for dep := range taskByID[id].Dependencies {
			if !taskSet[dep] {
				continue // dangling deps are reported separately
			}
			switch color[dep] {
			case gray:
				// Found a back edge: dep is an ancestor of id. Extract the
				// cycle path from dep's position in stack to the end.
				idx := indexOf(stack, dep)
				if idx >= 0 {
					cyclePath := append([]string{}, stack[idx:]...)
					cycles = append(cycles, cyclePath)
				}
			case white:
				dfs(dep)
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			dfs(id)
		}
	}

	return cycles
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// reachability computes, for every task, the set of tasks reachable by
// following dependency edges forward (i.e. a -> b means a depends on b, so
// b must complete before a; "a reaches b" means a transitively depends on
// b). This is used to decide whether two tasks touching the same file are
// safely ordered.
func reachability(tasks []models.Task) map[string]map[string]bool {
	taskByID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}

	memo := make(map[string]map[string]bool, len(tasks))
	var visit func(id string, visiting map[string]bool) map[string]bool
	visit = func(id string, visiting map[string]bool) map[string]bool {
		if cached, ok := memo[id]; ok {
			return cached
		}
		if visiting[id] {
			return map[string]bool{} // cycle guard; cycles are reported separately
		}
		visiting[id] = true

		reach := make(map[string]bool)
		task, ok := taskByID[id]
		if ok {
			for dep := range task.Dependencies {
				if _, exists := taskByID[dep]; !exists {
					continue
				}
				reach[dep] = true
				for r := range visit(dep, visiting) {
					reach[r] = true
				}
			}
		}
		delete(visiting, id)
		memo[id] = reach
		return reach
	}

	for _, t := range tasks {
		visit(t.ID, map[string]bool{})
	}
	return memo
}

// findFileConflicts reports every pair of tasks with overlapping Files sets
// where neither task transitively depends on the other.
func findFileConflicts(tasks []models.Task) []string {
	reach := reachability(tasks)

	var conflicts []string
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			a, b := tasks[i], tasks[j]
			overlap := overlappingFiles(a.Files, b.Files)
			if len(overlap) == 0 {
				continue
			}
			if reach[a.ID][b.ID] || reach[b.ID][a.ID] {
				continue // sequentially ordered, safe
			}
			sort.Strings(overlap)
			conflicts = append(conflicts, fmt.Sprintf(
				"tasks %s and %s both modify %v with no dependency ordering between them",
				a.ID, b.ID, overlap))
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

func overlappingFiles(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[filepath.Clean(f)] = true
	}
	var overlap []string
	seen := make(map[string]bool)
	for _, f := range b {
		cf := filepath.Clean(f)
		if set[cf] && !seen[cf] {
			seen[cf] = true
			overlap = append(overlap, cf)
		}
	}
	return overlap
}

// findOrphans reports tasks with no dependencies and no dependents, in a
// plan of more than one task. This is informational, never an error.
func findOrphans(tasks []models.Task) []string {
	hasDependent := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		for dep := range t.Dependencies {
			hasDependent[dep] = true
		}
	}

	var orphans []string
	for _, t := range tasks {
		if len(t.Dependencies) == 0 && !hasDependent[t.ID] {
			orphans = append(orphans, t.ID)
		}
	}
	sort.Strings(orphans)
	return orphans
}
