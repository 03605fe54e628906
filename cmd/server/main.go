package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/fazenda/internal"
	"github.com/DukeRupert/fazenda/internal/cache"
	"github.com/DukeRupert/fazenda/internal/gateway"
	"github.com/DukeRupert/fazenda/internal/handler"
	"github.com/DukeRupert/fazenda/internal/metrics"
	"github.com/DukeRupert/fazenda/internal/middleware"
	"github.com/DukeRupert/fazenda/internal/prefs"
	"github.com/DukeRupert/fazenda/internal/resource"
	"github.com/DukeRupert/fazenda/internal/session"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Remote API
	api, err := gateway.New(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("gateway initialization failed: %w", err)
	}

	clients, products, sales := api.Clients(), api.Products(), api.Sales()
	lists := cache.New(logger)
	backend := resource.Backend{
		ClientAPI:  clients,
		ProductAPI: products,
		SaleAPI:    sales,
		Weeks:      sales,

		Clients:  cache.Bind(lists, clients.Name(), clients.List),
		Products: cache.Bind(lists, products.Name(), products.List),
		Sales:    cache.Bind(lists, sales.Name(), sales.List),

		Location:          cfg.Location,
		DeleteConcurrency: cfg.DeleteConcurrency,
	}

	// Display preferences
	store, closeStore, err := openPrefs(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize template renderer
	renderer, err := handler.NewRenderer(handler.Templates(), logger)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "pages", renderer.ListTemplates())

	// Browser workspaces
	sessions := session.NewManager(session.Config{
		Backend:     backend,
		Prefs:       store,
		IdleTimeout: cfg.SessionIdleTimeout,
		MaxSessions: cfg.SessionMax,
		Logger:      logger,
	})
	go sessions.Run(ctx, time.Minute)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	go limiter.Run(ctx)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	sessionMw := middleware.NewSessionMiddleware(sessions, logger, isSecure)
	csrfMw := middleware.NewCSRFMiddleware(logger, isSecure)
	rateMw := middleware.NewRateLimitMiddleware(limiter, logger)
	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("metrics endpoint is unprotected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	h := handler.New(renderer, logger)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Screens need a workspace, and their POSTs a CSRF token
	screens := middleware.Stack(sessionMw.Attach, csrfMw.Protect, rateMw.Limit)
	h.RegisterRoutes(mux, screens)

	root := middleware.Stack(
		metrics.Middleware,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// openPrefs returns the Postgres preference store when DATABASE_URL is set,
// and an in-memory one otherwise.
func openPrefs(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (prefs.Store, func(), error) {
	if cfg.DatabaseUrl == "" {
		logger.Info("DATABASE_URL not set; display preferences kept in memory")
		return prefs.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	return prefs.NewPostgresStore(db), func() { db.Close() }, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
