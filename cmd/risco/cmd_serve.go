package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/risco/internal/api"
	"github.com/kiranshivaraju/risco/internal/api/handler"
	mw "github.com/kiranshivaraju/risco/internal/api/middleware"
	"github.com/kiranshivaraju/risco/internal/config"
	"github.com/kiranshivaraju/risco/internal/risco"
	"github.com/kiranshivaraju/risco/internal/store"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := initLogger(os.Stdout, cfg.Log)
	logger.Info("config loaded",
		"env", cfg.Server.Env,
		"backend", cfg.Model.Backend,
		"explainer", cfg.Model.Explainer,
		"artifact_store", cfg.Model.ArtifactStore,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Warm the model in the background; requests that arrive first share
	// the same attempt.
	go func() {
		if err := a.classifier.EnsureReady(ctx); err != nil {
			logger.Warn("model warm-up failed", "error", err)
			return
		}
		info := a.classifier.Info()
		logger.Info("risk model ready", "version", info.Version, "source", info.Source, "mean_auc", info.MeanAUC)
	}()

	svc := risco.NewService(a.store, a.store, a.publisher, a.classifier, a.metrics, logger)

	deps := api.Dependencies{
		Logger:  logger,
		Metrics: a.metrics,
		Auth:    mw.NewAuth(cfg.Auth.APIKeyHashes),

		HealthHandler:   handler.NewHealthHandler(a.store, nil),
		AnalisarHandler: handler.NewAnalisarHandler(svc),
		GetHandler:      handler.NewGetHandler(svc),
		MatrizHandler:   handler.NewMatrizHandler(svc),
		ModeloHandler:   handler.NewModeloHandler(svc),
	}
	if a.cache != nil {
		deps.HealthHandler = handler.NewHealthHandler(a.store, a.cache)
		deps.RateLimit = mw.NewRateLimit(a.cache, cfg.Auth.RateLimitPerMin)
	}
	if !deps.Auth.Enabled() {
		logger.Warn("no API key hashes configured, authentication is disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
