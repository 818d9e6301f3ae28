package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/model"
	"github.com/khanglvm/maxent/internal/storage"
)

// PredictResult is one classified context.
type PredictResult struct {
	Context   []string           `json:"context"`
	Best      string             `json:"best"`
	Outcomes  []model.Prediction `json:"outcomes,omitempty"`
	Formatted string             `json:"formatted,omitempty"`
}

// NewPredictCmd creates the 'predict' command.
func NewPredictCmd() *cobra.Command {
	var (
		modelName  string
		showAll    bool
		top        int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "predict --model <name> [predicate...]",
		Short: "Classify a context with a trained model",
		Long: `Evaluate a context against a stored model and print the best outcome.

The context is taken from the arguments. Without arguments, contexts are read
from stdin, one per line, with predicates separated by whitespace. Predicates
the model has never seen are ignored.`,
		Example: `  maxent predict --model weather outlook=sunny humidity=high
  maxent predict --model weather --all outlook=overcast
  cat contexts.txt | maxent predict --model tagger --top 3 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, modelName, args, showAll, top, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model name (required)")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show the probability of every outcome")
	cmd.Flags().IntVarP(&top, "top", "t", 0, "Show the N most probable outcomes")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON lines")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runPredict(cmd *cobra.Command, modelName string, args []string, showAll bool, top int, jsonOutput bool) error {
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

	cache, err := storage.NewModelCache(store, e.cfg.Storage.CacheSize)
	if err != nil {
		return err
	}
	m, err := cache.Get(modelName)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("model '%s' not found. Run 'maxent models list' to see stored models", modelName)
		}
		return err
	}

	w := cmd.OutOrStdout()
	if len(args) > 0 {
		return printPrediction(w, m, args, showAll, top, jsonOutput)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		preds := strings.Fields(scanner.Text())
		if len(preds) == 0 {
			continue
		}
		if err := printPrediction(w, m, preds, showAll, top, jsonOutput); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printPrediction(w io.Writer, m *model.Model, preds []string, showAll bool, top int, jsonOutput bool) error {
	dist := m.Eval(preds)
	res := PredictResult{Context: preds, Best: m.BestOutcome(dist)}

	switch {
	case top > 0:
		ranked := m.Ranked(dist)
		if top < len(ranked) {
			ranked = ranked[:top]
		}
		res.Outcomes = ranked
	case showAll:
		res.Formatted = m.AllOutcomesFormatted(dist)
	}

	if jsonOutput {
		return writeJSONLine(w, res)
	}

	switch {
	case len(res.Outcomes) > 0:
		parts := make([]string, len(res.Outcomes))
		for i, p := range res.Outcomes {
			parts[i] = fmt.Sprintf("%s[%.4f]", p.Outcome, p.Probability)
		}
		_, err := fmt.Fprintf(w, "%s\t%s\n", res.Best, strings.Join(parts, " "))
		return err
	case res.Formatted != "":
		_, err := fmt.Fprintf(w, "%s\t%s\n", res.Best, res.Formatted)
		return err
	default:
		_, err := fmt.Fprintln(w, res.Best)
		return err
	}
}
