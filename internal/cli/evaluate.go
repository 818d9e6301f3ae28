package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/evaluate"
)

// NewEvaluateCmd creates the 'evaluate' command for scoring a model on held-out events.
func NewEvaluateCmd() *cobra.Command {
	var (
		modelName   string
		negative    string
		format      string
		encoding    string
		realValues  bool
		skipInvalid bool
		verbose     bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate --model <name> <events-file>",
		Short: "Measure a model's accuracy, precision and recall on an event file",
		Long: `Classify every event of a file with a stored model and compare the best
outcome with the event's own outcome.

With --negative, precision and recall are computed against that outcome:
every other outcome is a positive label, and a positive guess only counts as
a true positive when it names the gold outcome.`,
		Example: `  maxent evaluate --model weather weather-test.txt
  maxent evaluate --model names --negative other names-test.txt --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ts := *e.cfg.Training
			if cmd.Flags().Changed("format") {
				ts.Format = format
			}
			if cmd.Flags().Changed("encoding") {
				ts.Encoding = encoding
			}
			if cmd.Flags().Changed("real-values") {
				ts.RealValues = realValues
			}

			store, err := e.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			m, err := store.LoadModel(modelName)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("model '%s' not found", modelName)
				}
				return err
			}

			stream, err := openEvents(args[0], ts, skipInvalid, e.logger)
			if err != nil {
				return err
			}
			defer stream.Close()

			w := cmd.OutOrStdout()
			opts := evaluate.Options{NegativeOutcome: negative, Logger: e.logger}
			if verbose && !jsonOutput {
				opts.Verbose = w
			}

			report, err := evaluate.Evaluate(ctx, m, stream, opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(w, report)
			}
			fmt.Fprint(w, evaluate.FormatReport(report))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&modelName, "model", "m", "", "Model name (required)")
	flags.StringVar(&negative, "negative", "", "Outcome that does not count as a positive")
	flags.StringVar(&format, "format", "plain", "Event format: plain or comma")
	flags.StringVar(&encoding, "encoding", "", "Character set of the event file")
	flags.BoolVar(&realValues, "real-values", false, "Parse pred=value tokens")
	flags.BoolVar(&skipInvalid, "skip-invalid", false, "Skip events with negative values")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print the gold and guessed outcome of every event")
	flags.BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.MarkFlagRequired("model")

	return cmd
}
