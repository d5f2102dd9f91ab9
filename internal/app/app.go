// Package app wires the verification server: configuration, logging,
// observability, storage, and the HTTP transport.
package app

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

	"github.com/lennox-rose/blueprint-licensing/internal/config"
	"github.com/lennox-rose/blueprint-licensing/internal/infrastructure"
	customMiddleware "github.com/lennox-rose/blueprint-licensing/internal/middleware"
	"github.com/lennox-rose/blueprint-licensing/internal/store"
	handlers "github.com/lennox-rose/blueprint-licensing/internal/transport/http"
	"github.com/lennox-rose/blueprint-licensing/internal/verify"
)

const (
	AppName = "Blueprint License Server"
	Version = "1.0.0"
)

// Application represents the verification server container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	VerifyService verify.Service
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
}

// NewApplication creates a new application instance with dependency
// injection.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := store.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	st := store.New(db)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Store:         st,
	}

	app.VerifyService = verify.NewService(
		st,
		cfg.Security.VerificationSecret,
		cfg.Security.ExpectedClientDigest,
		store.RateLimitPolicy{
			Window:      cfg.Security.RateLimitWindow,
			MaxRequests: cfg.Security.RateLimitMax,
			Retention:   cfg.Security.RateLimitRetention,
		},
		logger,
	)

	app.setupRouter()
	app.createServer()

	return app, nil
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware ordering: RequestID → RealIP → Logger → Recoverer →
	// SecurityHeaders → Timeout → global limiter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

	// The coarse outer limiter keeps its 429 body in the protocol's
	// invalid shape; the per-(ip, key) limiter inside the pipeline is the
	// authoritative one.
	globalLimiter := customMiddleware.NewRateLimiter(
		a.Config.Security.GlobalRPS,
		a.Config.Security.GlobalBurst,
		a.Logger,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"status":"invalid","signature":"","timestamp":%d}`, time.Now().Unix())
		},
	)

	r.Group(func(r chi.Router) {
		r.Use(globalLimiter.Handler)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		verifyHandler := handlers.NewVerifyHandler(a.VerifyService, a.Logger)
		r.Mount("/v1/blueprint", verifyHandler.Routes())
	})

	healthHandler := handlers.NewHealthHandler(a.Store, Version, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("name", AppName),
		slog.Int("port", a.Config.Server.Port))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file",
			slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
