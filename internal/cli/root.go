// Package cli wires chopstack's cobra commands: plan, validate, execute,
// and resume. Grounded on the teacher's internal/cmd/root.go for the root
// command shape and on run.go/validate.go for the flag-merge-with-config
// and plan-loading patterns those subcommands share, trimmed of every
// QC/learning/TTS/agent-registry concern those files also carry, none of
// which has a home here.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the root "chopstack" command with every subcommand
// attached.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "chopstack",
		Short: "Decompose and execute implementation plans across parallel coding-agent tasks",
		Long: `chopstack validates an implementation plan's task graph and drives it
through isolated per-task worktrees, a bounded-concurrency execution
engine, and a VCS stack-assembly pass, so independent tasks run in
parallel and land as a clean sequence of commits or a stacked set of
branches.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newPlanCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newExecuteCommand())
	root.AddCommand(newResumeCommand())

	return root
}
