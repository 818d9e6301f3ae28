package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/storage"
)

// NewHistoryCmd creates the 'history' command for viewing training runs.
func NewHistoryCmd() *cobra.Command {
	var (
		limit      int
		runID      int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history <model>",
		Short: "Show the training runs of a model",
		Long: `List the recorded training runs of a model, newest first.

With --run, print the per-iteration log-likelihood and training accuracy
of one run instead.`,
		Example: `  maxent history weather
  maxent history weather --run 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if runID > 0 {
				its, err := store.GetIterations(runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(w, its)
				}
				printIterations(w, runID, its)
				return nil
			}

			runs, err := store.GetTrainingHistory(args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(w, runs)
			}
			printRuns(w, args[0], runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs (0 for all)")
	cmd.Flags().Int64Var(&runID, "run", 0, "Show the iterations of this run")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func printRuns(w io.Writer, name string, runs []storage.TrainingRun) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No training runs recorded for '%s'.\n", name)
		return
	}

	fmt.Fprintf(w, "Training runs of '%s' (%d):\n\n", name, len(runs))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tEVENTS\tPREDICATES\tITERATIONS\tLOG-LIKELIHOOD\tDURATION")
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%.6f\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status,
			r.Events, r.Predicates, r.Iterations, r.LogLikelihood, duration)
	}
	tw.Flush()

	for _, r := range runs {
		if r.Error != "" {
			fmt.Fprintf(w, "\nRun %d failed: %s\n", r.ID, r.Error)
		}
	}
}

func printIterations(w io.Writer, runID int64, its []storage.IterationRecord) {
	if len(its) == 0 {
		fmt.Fprintf(w, "No iterations recorded for run %d.\n", runID)
		return
	}
	fmt.Fprintln(w, "Iteration  Log-likelihood  Accuracy")
	for _, it := range its {
		fmt.Fprintf(w, "%5d:  %.6f  %.4f\n", it.Iteration, it.LogLikelihood, it.Accuracy)
	}
}
