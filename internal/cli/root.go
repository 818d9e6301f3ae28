/*
Package cli implements the command-line interface for maxent.

Each command is implemented as a separate function that returns a *cobra.Command,
allowing for clean separation and easy testing. Commands write their output
to the command's output stream and log to stderr.
*/
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/config"
	"github.com/khanglvm/maxent/internal/logging"
	"github.com/khanglvm/maxent/internal/storage"
	"github.com/khanglvm/maxent/internal/version"
)

// NewRootCmd creates the 'maxent' command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "maxent",
		Short: "Train and query maximum entropy classifiers",
		Long: `maxent trains maximum entropy models with Generalized Iterative Scaling
and serves them for classification.

Training data is one event per line: the outcome followed by the active
contextual predicates. Trained models are stored in ~/.maxent/models.db.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ~/.maxent.json)")
	flags.String("db", "", "Model database (default ~/.maxent/models.db)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(NewTrainCmd())
	rootCmd.AddCommand(NewPredictCmd())
	rootCmd.AddCommand(NewEvaluateCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewFeaturesCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// env carries the configuration and logger shared by a command run.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
}

// flagString reads a flag that may be inherited from the root command.
// Commands run on their own (as in tests) simply see "".
func flagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// loadEnv loads the config file and applies the global flag overrides.
func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadOrDefault(flagString(cmd, "config"))
	if err != nil {
		return nil, err
	}

	if v := flagString(cmd, "db"); v != "" {
		cfg.Storage.Path = v
	}
	if v := flagString(cmd, "log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := flagString(cmd, "log-file"); v != "" {
		cfg.Log.File = v
	}

	logger, closeLog, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger, closeLog: closeLog}, nil
}

// openStorage opens the model database.
func (e *env) openStorage() (*storage.SQLiteStorage, error) {
	store := storage.NewStorage(e.cfg.Storage.Path, e.logger)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func (e *env) close() {
	if e.closeLog != nil {
		e.closeLog()
	}
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeJSONLine writes v as a single line.
func writeJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
