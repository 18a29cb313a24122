package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/history"
)

// newResumeCommand builds the "chopstack resume" command: look up the most
// recent recorded run for a plan file and re-execute only the tasks that
// did not finish successfully, via history.IncompleteTasks.
func newResumeCommand() *cobra.Command {
	flags := &executeFlags{}

	cmd := &cobra.Command{
		Use:   "resume <plan-file>",
		Short: "Re-run only the incomplete tasks from the most recent run of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planPath := args[0]

			incomplete, err := incompleteTasksFor(planPath)
			if err != nil {
				return err
			}
			if len(incomplete) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to resume, every task in the last run succeeded\n", planPath)
				return nil
			}

			keep := make(map[string]bool, len(incomplete))
			for _, id := range incomplete {
				keep[id] = true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: resuming %d incomplete task(s): %v\n", planPath, len(incomplete), incomplete)

			return runExecute(cmd, planPath, flags, keep)
		},
	}
	bindExecuteFlags(cmd, flags)
	return cmd
}

func incompleteTasksFor(planPath string) ([]string, error) {
	dbPath, err := config.GetHistoryDBPath()
	if err != nil {
		return nil, fmt.Errorf("locate history database: %w", err)
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()

	_, tasks, err := store.LatestRun(context.Background(), planPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no recorded run found for %s; run `chopstack execute` first", planPath)
		}
		return nil, fmt.Errorf("load latest run: %w", err)
	}

	return history.IncompleteTasks(tasks), nil
}
