package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/gates"
)

// newValidateCommand builds the "chopstack validate" command, reporting
// spec.md §4.1's ValidationReport for a single plan file or a directory of
// split-plan files.
//
// Grounded on the teacher's internal/cmd/validate.go for the command
// shape; the teacher's own validation body accumulates a long list of
// QC/rubric/worktree-group/data-flow-registry checks none of which applies
// here, since dag.ValidatePlan already performs every structural, cycle,
// and file-conflict check spec.md §4.1 names in one pass.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Validate a plan's structure, dependency graph, and file-write conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			plan, err := loadPlan(path)
			if err != nil {
				return err
			}

			report := dag.ValidatePlan(plan)
			printValidationReport(cmd, path, report)

			gate := gates.PostGenerationGate(plan, report)
			printGateWarnings(cmd, gate)
			if !gate.Clear() {
				return reportValidationFailure(report)
			}
			return nil
		},
	}
}

// printGateWarnings surfaces PostGenerationGate's plan-quality findings that
// the DAG validator itself doesn't make, such as tasks missing acceptance
// criteria or XL-complexity tasks with no dependencies broken out. Warnings
// are informational; only Blocking findings fail the command.
func printGateWarnings(cmd *cobra.Command, gate *gates.GateReport) {
	out := cmd.OutOrStdout()
	for _, w := range gate.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
}

func printValidationReport(cmd *cobra.Command, path string, report *dag.ValidationReport) {
	out := cmd.OutOrStdout()
	if report.Valid {
		fmt.Fprintf(out, "%s: valid\n", path)
		return
	}

	fmt.Fprintf(out, "%s: invalid\n", path)
	for _, e := range report.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	for _, cycle := range report.CircularDependencies {
		fmt.Fprintf(out, "  circular dependency: %v\n", cycle)
	}
	for _, c := range report.Conflicts {
		fmt.Fprintf(out, "  conflict: %s\n", c)
	}
	for _, m := range report.MissingDependencies {
		fmt.Fprintf(out, "  missing dependency: %s\n", m)
	}
	for _, o := range report.OrphanedTasks {
		fmt.Fprintf(out, "  orphaned task: %s\n", o)
	}
}

// reportValidationFailure turns an invalid ValidationReport into the error
// cobra surfaces as the process's non-zero exit.
func reportValidationFailure(report *dag.ValidationReport) error {
	total := len(report.Errors) + len(report.CircularDependencies) + len(report.Conflicts) + len(report.MissingDependencies)
	return fmt.Errorf("plan validation failed with %d issue(s)", total)
}
