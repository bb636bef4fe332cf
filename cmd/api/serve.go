package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"storefront-orders/internal/core/database"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/core/server"
	invhandler "storefront-orders/internal/features/inventory/handler"
	orderhandler "storefront-orders/internal/features/orders/handler"
	payhandler "storefront-orders/internal/features/payments/handler"
	"storefront-orders/internal/features/payments/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	httpTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func serveCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, then start the HTTP API and the pending reconciliation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on start")
	return cmd
}

func runServe(parent context.Context, skipMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	l := logger.Get()

	if !skipMigrations {
		if err := database.MigrateURL(cfg.Database.URL); err != nil {
			return err
		}
		l.Info("Database migrations applied")
	}

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(cfg)
	srv.RegisterHealth(map[string]server.Pinger{
		"database": app.db,
		"cache":    app.cache,
	})
	invhandler.NewProductHandler(app.ledger).Register(srv.App)
	orderhandler.NewOrderHandler(app.orders).Register(srv.App)
	payhandler.NewWebhookHandler(app.reconciler).Register(srv.App)

	// Runs before app.Close so no sweep outlives the pool.
	stopSweeper := worker.NewSweeper(app.reconciler, cfg.Reconciliation.SweepInterval).Start(ctx)
	defer stopSweeper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.Error("Server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	l.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
