// Package cli implements the contraship command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/observability/metrics"
	"github.com/pendergraft/contraship/internal/pipeline"
	"github.com/pendergraft/contraship/internal/storage"
)

var (
	cfgFile string

	// loaded is the configuration of the running command, if it got that far
	loaded *config.Config
)

// Execute runs the CLI and returns the error of the failed command, if any
func Execute(version string) error {
	// Interrupts cancel the running command; a deploy that already submitted stops waiting
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(version)
	err := rootCmd.ExecuteContext(ctx)

	if loaded != nil && loaded.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(loaded.Metrics.Textfile); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", werr)
		}
	}
	return err
}

func newRootCmd(version string) *cobra.Command {
	cfgFile = ""
	loaded = nil

	rootCmd := &cobra.Command{
		Use:   "contraship",
		Short: "Build and deploy Solidity contracts",
		Long: `contraship compiles Solidity build targets with a pinned solc and deploys
the resulting contracts to an EVM chain.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: contraship.toml, contraship.yaml, contraship.yml or config.json)")

	// Add subcommands
	rootCmd.AddCommand(createBuildCmd())
	rootCmd.AddCommand(createDeployCmd())
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createDeploymentsCmd())
	rootCmd.AddCommand(createBuildsCmd())
	rootCmd.AddCommand(createCompilerCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createServeCmd())

	return rootCmd
}

// loadConfig loads the project configuration and sets up logging and metrics for it
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	loaded = cfg

	metrics.Init(cfg.Metrics.Enabled, "contraship")
	return cfg, setupLogger(cfg, os.Stderr), nil
}

// openLedger opens the configured store and attaches it to env.
// The returned close func is never nil.
func openLedger(ctx context.Context, env *pipeline.Env) (func(), error) {
	store, err := storage.New(env.Config.Storage, env.Logger)
	if errors.Is(err, storage.ErrDisabled) {
		return func() {}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	env.WithLedger(store)
	return func() { store.Close() }, nil
}

// requireLedger opens the store for commands that only read it
func requireLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	store, err := storage.New(cfg.Storage, logger)
	if errors.Is(err, storage.ErrDisabled) {
		return nil, fmt.Errorf("%w: no deployment ledger configured (set STORAGE_TYPE to sqlite or postgres)", config.ErrInvalidConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exactArgs rejects the wrong number of positional arguments as a configuration error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d (usage: %s)",
				config.ErrUnexpectedParameters, cmd.Name(), n, len(args), cmd.UseLine())
		}
		return nil
	}
}
