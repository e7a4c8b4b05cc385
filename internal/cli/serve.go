package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/deployments/domain"
	deploymentsTransport "github.com/pendergraft/contraship/internal/deployments/transport"
	"github.com/pendergraft/contraship/internal/server"
	"github.com/pendergraft/contraship/internal/storage"
)

func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve build status, artifacts and the deployment ledger over HTTP",
		Long: `Start a read-only HTTP server for the project.

ENDPOINTS:
  GET /health                          liveness
  GET /metrics                         Prometheus metrics
  GET /api/v1/targets                  targets and their committed builds
  GET /api/v1/targets/{name}/artifact  a target's compiled.json
  GET /api/v1/deployments              ledger entries (needs STORAGE_TYPE)

EXAMPLES:
  contraship serve
  PORT=9090 STORAGE_TYPE=sqlite contraship serve
`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.Root().Version)
		},
	}
}

func runServe(ctx context.Context, version string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("starting contraship server", "version", version)

	var deployments deploymentsTransport.Service
	store, err := storage.New(cfg.Storage, logger)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info("deployment ledger disabled")
	case err != nil:
		return fmt.Errorf("initializing storage: %w", err)
	default:
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		deployments = domain.NewService(store)
	}

	srv := server.New(cfg, artifact.NewStore(cfg.BuildDir, logger), deployments, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return serveUntilDone(ctx, httpServer, logger)
}

// serveUntilDone runs httpServer until ctx is cancelled, then shuts it down gracefully
func serveUntilDone(ctx context.Context, httpServer *http.Server, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
