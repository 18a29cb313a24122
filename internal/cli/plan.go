package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/watch"
)

// newPlanCommand builds the "chopstack plan" command: parse a plan file,
// validate it, and print the computed execution-layer schedule without
// running anything — the ModePlan dry pass spec.md §4.6 describes.
func newPlanCommand() *cobra.Command {
	var watchPlan bool

	cmd := &cobra.Command{
		Use:   "plan <plan-file>",
		Short: "Print a plan's computed execution layers without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if err := printPlanLayers(cmd.OutOrStdout(), path); err != nil {
				return err
			}
			if !watchPlan {
				return nil
			}
			return watchPlanFile(cmd, path)
		},
	}

	cmd.Flags().BoolVar(&watchPlan, "watch", false, "keep watching the plan file and re-validate on every edit")
	return cmd
}

func printPlanLayers(out io.Writer, path string) error {
	plan, err := loadPlan(path)
	if err != nil {
		return err
	}

	report := dag.ValidatePlan(plan)
	if !report.Valid {
		return reportValidationFailure(report)
	}

	execPlan := dag.CalculateLayers(plan.Tasks)
	fmt.Fprintf(out, "plan %q: %d task(s), %d layer(s), max parallelism %d, critical path %d\n",
		plan.Name, len(plan.Tasks), len(execPlan.Layers), execPlan.MaxParallelism, execPlan.CriticalPathLength)

	for _, layer := range execPlan.Layers {
		fmt.Fprintf(out, "  layer %d: %v\n", layer.Index, layer.Tasks)
	}
	return nil
}

// watchPlanFile runs a PlanWatcher until the process receives an interrupt,
// printing each revalidation outcome as it's published on the bus.
func watchPlanFile(cmd *cobra.Command, path string) error {
	bus := eventbus.New()
	bus.Subscribe(eventbus.TopicLog, func(_ eventbus.Topic, payload interface{}) {
		if p, ok := payload.(eventbus.LogPayload); ok {
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
		}
	})

	pw, err := watch.New(bus, path)
	if err != nil {
		return fmt.Errorf("watch plan: %w", err)
	}
	defer pw.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes, ctrl-c to stop\n", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}
