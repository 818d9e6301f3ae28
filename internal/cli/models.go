package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/model"
	"github.com/khanglvm/maxent/internal/storage"
)

// NewModelsCmd creates the 'models' command group.
func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage stored models",
		Long: `List, inspect and delete the models stored in the model database.

Commands:
  list    List stored models
  show    Show a model's metadata, outcomes and parameters
  delete  Delete a model and its training history`,
	}

	cmd.AddCommand(newModelsListCmd())
	cmd.AddCommand(newModelsShowCmd())
	cmd.AddCommand(newModelsDeleteCmd())

	return cmd
}

func newModelsListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored models",
		Example: `  maxent models list
  maxent models ls --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func runModelsList(cmd *cobra.Command, jsonOutput bool) error {
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

	infos, err := store.ListModels()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		if infos == nil {
			infos = []storage.ModelInfo{}
		}
		return writeJSON(w, infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No models stored.")
		fmt.Fprintln(w, "Run 'maxent train <events-file>' to train one.")
		return nil
	}

	fmt.Fprintf(w, "Stored models (%d):\n\n", len(infos))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tOUTCOMES\tPREDICATES\tPARAMETERS\tITERATIONS\tLOG-LIKELIHOOD\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.4f\t%s\n",
			info.Name, info.NumOutcomes, info.NumPredicates, info.NumParameters,
			info.Iterations, info.LogLikelihood, info.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newModelsShowCmd() *cobra.Command {
	var (
		showParams bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a model's metadata and outcomes",
		Example: `  maxent models show weather
  maxent models show weather --parameters`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsShow(cmd, args[0], showParams, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&showParams, "parameters", "p", false, "Print the weight of every (predicate, outcome) pair")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output metadata as JSON")
	return cmd
}

func runModelsShow(cmd *cobra.Command, name string, showParams, jsonOutput bool) error {
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

	info, err := store.GetModelInfo(name)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("model '%s' not found", name)
		}
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(w, info)
	}

	fmt.Fprintf(w, "Model: %s\n", info.Name)
	if info.Description != "" {
		fmt.Fprintf(w, "  Description:         %s\n", info.Description)
	}
	if info.Source != "" {
		fmt.Fprintf(w, "  Source:              %s\n", info.Source)
	}
	fmt.Fprintf(w, "  Created:             %s\n", info.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Outcomes:            %d\n", info.NumOutcomes)
	fmt.Fprintf(w, "  Predicates:          %d\n", info.NumPredicates)
	fmt.Fprintf(w, "  Parameters:          %d (%d outcome patterns)\n", info.NumParameters, info.NumPatterns)
	fmt.Fprintf(w, "  Correction constant: %d\n", info.CorrectionConstant)
	fmt.Fprintf(w, "  Correction param:    %.6f\n", info.CorrectionParam)
	fmt.Fprintf(w, "  Training:            %d iterations, cutoff %d, smoothing %v\n", info.Iterations, info.Cutoff, info.Smoothing)
	fmt.Fprintf(w, "  Log-likelihood:      %.6f\n", info.LogLikelihood)

	m, err := store.LoadModel(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  Outcome names:       %s\n", strings.Join(m.Outcomes(), ", "))

	if showParams {
		fmt.Fprintln(w)
		printParameters(w, m)
	}
	return nil
}

// printParameters lists every predicate with its weights, strongest first.
func printParameters(w io.Writer, m *model.Model) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREDICATE\tOUTCOME\tWEIGHT")
	for pid, name := range m.Predicates() {
		ctx := m.Context(pid)
		order := make([]int, ctx.Len())
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return ctx.Params[order[a]] > ctx.Params[order[b]]
		})
		for _, i := range order {
			fmt.Fprintf(tw, "%s\t%s\t%.6f\n", name, m.Outcome(ctx.Outcomes[i]), ctx.Params[i])
		}
	}
	tw.Flush()
}

func newModelsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a model and its training history",
		Example: `  maxent models delete weather
  maxent models rm weather --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without asking")
	return cmd
}

func runModelsDelete(cmd *cobra.Command, name string, force bool) error {
	w := cmd.OutOrStdout()

	if !force {
		fmt.Fprintf(w, "This will delete model '%s' and its training history. Continue? (y/N): ", name)
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Cancelled")
			return nil
		}
	}

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

	if err := store.DeleteModel(name); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("model '%s' not found", name)
		}
		return err
	}

	fmt.Fprintf(w, "✓ Deleted model '%s'\n", name)
	return nil
}
