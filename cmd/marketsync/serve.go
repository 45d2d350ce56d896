package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/market-sync/internal/server"
	"github.com/rickgao/market-sync/internal/stream"
	"github.com/rickgao/market-sync/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and HTTP server",
	Long: `Run the background sync loop and serve the snapshot API until SIGINT or
SIGTERM. The schema is applied on startup when the postgres backend is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	cfg := a.cfg
	logger.Info("starting marketsync",
		"version", version.Version,
		"commit", version.Commit,
		"storage", cfg.Storage.Backend,
		"lock", cfg.Lock.Backend,
	)

	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	hub := stream.NewHub(stream.DefaultHubConfig(), a.accessor, logger)
	a.scheduler.AddHandler(hub)

	opts := []server.Option{server.WithStream(hub)}
	if a.pool != nil {
		opts = append(opts, server.WithCheck("postgres", a.pool))
	}
	if a.redisLock != nil {
		opts = append(opts, server.WithCheck("redis", a.redisLock))
	}
	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		SyncTimeout:    cfg.Server.SyncTimeout,
		MetricsEnabled: cfg.Metrics.IsEnabled(),
		MetricsPath:    cfg.Metrics.Path,
	}, a.accessor, a.scheduler, logger, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info("marketsync running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
		"interval", cfg.Scheduler.Interval,
		"top_n", cfg.Scheduler.TopN,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("http server error", "error", serveErr)
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
	hub.Close()
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}

	logger.Info("marketsync stopped")
	return serveErr
}
