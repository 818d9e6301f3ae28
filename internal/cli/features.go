package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/search"
)

// NewFeaturesCmd creates the 'features' command for searching a model's predicates.
func NewFeaturesCmd() *cobra.Command {
	var (
		modelName  string
		outcome    string
		limit      int
		indexPath  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "features --model <name> [query]",
		Short: "Search the predicates of a model",
		Long: `Find predicates of a stored model by keyword. Matching is BM25 over the
predicate names and the outcomes they carry weights for, and tolerates
small typos.

With --outcome, list the predicates whose strongest weight is for that
outcome instead.`,
		Example: `  maxent features --model weather humid
  maxent features --model tagger --outcome VERB --limit 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			if query == "" && outcome == "" {
				return fmt.Errorf("a query or --outcome is required")
			}
			return runFeatures(cmd, modelName, query, outcome, limit, indexPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model name (required)")
	cmd.Flags().StringVarP(&outcome, "outcome", "o", "", "List predicates whose strongest outcome is this")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of results")
	cmd.Flags().StringVar(&indexPath, "index", "", "Keep the search index on disk at this path")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runFeatures(cmd *cobra.Command, modelName, query, outcome string, limit int, indexPath string, jsonOutput bool) error {
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

	m, err := store.LoadModel(modelName)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("model '%s' not found", modelName)
		}
		return err
	}

	var indexer *search.Indexer
	if indexPath != "" {
		indexer, err = search.NewIndexerWithPath(indexPath, e.logger)
	} else {
		indexer, err = search.NewIndexer(e.logger)
	}
	if err != nil {
		return err
	}
	defer indexer.Close()

	if err := indexer.IndexModel(modelName, m); err != nil {
		return err
	}

	var results []search.PredicateResult
	if outcome != "" {
		results, err = indexer.ByOutcome(modelName, outcome, limit)
	} else {
		results, err = indexer.SearchModel(query, modelName, limit)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		if results == nil {
			results = []search.PredicateResult{}
		}
		return writeJSON(w, results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No matching predicates.")
		return nil
	}
	printFeatureResults(w, results)
	return nil
}

func printFeatureResults(w io.Writer, results []search.PredicateResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREDICATE\tTOP OUTCOME\tWEIGHT\tOUTCOMES\tSCORE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%.3f\n",
			r.Predicate, r.TopOutcome, r.TopWeight, strings.Join(r.Outcomes, ","), r.Score)
	}
	tw.Flush()
}
