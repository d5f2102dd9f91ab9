package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"

	"github.com/lennox-rose/blueprint-licensing/internal/agent"
	"github.com/lennox-rose/blueprint-licensing/internal/client"
	"github.com/lennox-rose/blueprint-licensing/internal/config"
	"github.com/lennox-rose/blueprint-licensing/internal/infrastructure"
	customMiddleware "github.com/lennox-rose/blueprint-licensing/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panel-agent error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAgent()
	if err != nil {
		return fmt.Errorf("failed to load agent configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.InfoContext(ctx, "Panel agent starting",
		slog.String("product", cfg.Product),
		slog.String("domain", cfg.Domain),
		slog.Int("port", cfg.Port))

	verifier := client.New(cfg, logger)
	settings := client.NewSettingsStore(cfg.StatePath)
	service := agent.NewService(verifier, settings, cfg.VerifyCooldown, logger)

	heartbeat := client.NewHeartbeat(verifier, settings, cfg.HeartbeatInterval, logger)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.StructuredLogger(logger))
	r.Use(customMiddleware.Recoverer(logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Mount("/api", agent.NewHandler(service, logger).Routes())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
		logger.InfoContext(ctx, "Received interrupt signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.InfoContext(ctx, "Panel agent shutdown complete")
	return nil
}
