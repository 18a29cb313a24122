// Package gates implements chopstack's two process gates: a pre-generation
// check over the raw spec text handed to a decomposer, and a post-generation
// check over the plan that decomposition produced. Both run before any
// subprocess is launched and report structured findings rather than erroring
// directly, mirroring the teacher's pre-flight-check idiom in
// internal/executor/preflight.go (checks run up front, failures carry
// command/description/output context rather than a bare error string).
package gates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/models"
)

// GateReport is the structured outcome of a gate: Blocking findings stop the
// pipeline before any subprocess runs, Warnings are logged and otherwise
// ignored.
type GateReport struct {
	Blocking []string
	Warnings []string
}

// Clear reports whether the gate found nothing worth blocking on.
func (r *GateReport) Clear() bool {
	return len(r.Blocking) == 0
}

var vagueTerms = []string{
	"tbd", "todo", "some kind of", "etc.", "and so on", "figure out later",
	"not sure yet", "something like",
}

// minSpecLength is the shortest spec text considered dense enough to
// decompose into tasks without guessing at missing scope.
const minSpecLength = 80

// PreGenerationGate checks the raw spec text a decomposer is about to act on
// for the kind of gaps that turn into unresolvable ambiguity once tasks
// exist: too little material to scope work from, and hedging language that
// signals the author themselves doesn't know the boundary yet.
func PreGenerationGate(specText string) *GateReport {
	report := &GateReport{}

	trimmed := strings.TrimSpace(specText)
	if trimmed == "" {
		report.Blocking = append(report.Blocking, "spec text is empty")
		return report
	}
	if len(trimmed) < minSpecLength {
		report.Blocking = append(report.Blocking, fmt.Sprintf(
			"spec text is only %d characters, below the %d-character minimum for scoping tasks from it",
			len(trimmed), minSpecLength))
	}

	lower := strings.ToLower(trimmed)
	for _, term := range vagueTerms {
		if strings.Contains(lower, term) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("spec text contains hedging language %q", term))
		}
	}

	if !hasAcceptanceSignal(lower) {
		report.Warnings = append(report.Warnings, "spec text does not name any acceptance criteria, success metric, or non-goal")
	}

	return report
}

var acceptanceSignalRe = regexp.MustCompile(`(?i)\b(acceptance|success|non-goal|out of scope|done when)\b`)

func hasAcceptanceSignal(lower string) bool {
	return acceptanceSignalRe.MatchString(lower)
}

// PostGenerationGate checks a decomposed plan, folding in the DAG validator's
// own findings (cycles, dangling dependencies, file conflicts are always
// blocking) plus plan-quality checks the validator itself does not make:
// tasks missing acceptance criteria, XL-complexity tasks with no
// dependencies broken out, and orphaned tasks.
func PostGenerationGate(plan *models.Plan, validation *dag.ValidationReport) *GateReport {
	report := &GateReport{}

	if plan == nil {
		report.Blocking = append(report.Blocking, "plan is nil")
		return report
	}
	if validation == nil {
		validation = dag.ValidatePlan(plan)
	}

	report.Blocking = append(report.Blocking, validation.Errors...)
	for _, cycle := range validation.CircularDependencies {
		report.Blocking = append(report.Blocking, fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")))
	}
	report.Blocking = append(report.Blocking, validation.Conflicts...)
	report.Blocking = append(report.Blocking, validation.MissingDependencies...)

	for _, id := range validation.OrphanedTasks {
		report.Warnings = append(report.Warnings, fmt.Sprintf("task %s has no dependencies and no dependents", id))
	}

	for _, t := range plan.Tasks {
		if len(t.AcceptanceCriteria) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("task %s declares no acceptance criteria", t.ID))
		}
		if t.Complexity == models.ComplexityXL && len(t.Dependencies) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"task %s is XL complexity with no dependencies; consider breaking it into smaller tasks", t.ID))
		}
	}

	return report
}
