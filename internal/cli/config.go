package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/maxent/internal/config"
	"github.com/khanglvm/maxent/internal/storage"
)

// NewConfigCmd creates the 'config' command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show and verify the configuration file",
		Long: `Manage ~/.maxent.json (or the file given with --config). Files ending in
.yaml or .yml are read and written as YAML.

Commands:
  init    Write a config file holding the defaults
  show    Print the effective configuration
  verify  Validate the config file and open the model database`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigVerifyCmd())

	return cmd
}

// configPath returns --config or the default path.
func configPath(cmd *cobra.Command) (string, error) {
	if p := flagString(cmd, "config"); p != "" {
		return p, nil
	}
	return config.GetDefaultConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the defaults",
		Example: `  maxent config init
  maxent --config ./maxent.yaml config init`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
			}
			if err := config.Save(config.NewConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file (a .bak copy is kept)")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			cfg := *e.cfg
			storageSettings := *cfg.Storage
			if storageSettings.Path == "" {
				storageSettings.Path, _ = storage.DefaultPath()
			}
			cfg.Storage = &storageSettings
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

// newConfigVerifyCmd validates the configuration.
func newConfigVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Validate the config file and open the model database",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			_, err = config.LoadFrom(path)
			var notFound *config.ConfigNotFoundError
			switch {
			case errors.As(err, &notFound):
				fmt.Fprintf(w, "- No config file at %s, using defaults\n", path)
			case err != nil:
				return err
			default:
				fmt.Fprintf(w, "✓ Config valid: %s\n", path)
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

			infos, err := store.ListModels()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Model database: %s (%d models)\n", store.Path(), len(infos))
			return nil
		},
	}
}
