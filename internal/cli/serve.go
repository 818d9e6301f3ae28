package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/rpc"
	"github.com/khanglvm/maxent/internal/search"
	"github.com/khanglvm/maxent/internal/storage"
)

// NewServeCmd creates the 'serve' command for running the JSON-RPC server.
func NewServeCmd() *cobra.Command {
	var preload []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored models over JSON-RPC (stdio transport)",
		Long: `Start the maxent server using stdio transport.

Requests are JSON-RPC 2.0 objects, one per line on stdin; responses are
written one per line to stdout. Methods:
  • initialize      - Server name, version and methods
  • models/list     - Metadata of every stored model
  • model/eval      - Probability of every outcome for a context
  • model/best      - Most probable outcome for a context
  • model/outcomes  - Outcome names of a model
  • features/search - Keyword search over a model's predicates

Models are loaded on first use and kept in an LRU cache.`,
		Example: `  maxent serve
  echo '{"jsonrpc":"2.0","id":1,"method":"model/best","params":{"model":"weather","context":["outlook=sunny"]}}' | maxent serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, preload)
		},
	}

	cmd.Flags().StringSliceVar(&preload, "preload", nil, "Models to load and index at startup")

	return cmd
}

// runServe starts the server and shuts down on SIGINT/SIGTERM or when stdin closes.
func runServe(cmd *cobra.Command, preload []string) error {
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

	indexer, err := search.NewIndexer(e.logger)
	if err != nil {
		return err
	}
	defer indexer.Close()

	server := rpc.NewServer(cache, store, indexer, e.logger)
	for _, name := range preload {
		if err := server.IndexModel(name); err != nil {
			return fmt.Errorf("failed to preload %s: %w", name, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.logger.Info("serving models", zap.String("db", store.Path()), zap.Int("cache_size", e.cfg.Storage.CacheSize))
	err = server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("server error: %w", err)
	}
	e.logger.Info("shutdown complete")
	return nil
}
