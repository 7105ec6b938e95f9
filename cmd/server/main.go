package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/octorank/octorank/internal"
	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/handler"
	"github.com/octorank/octorank/internal/identity"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/middleware"
	"github.com/octorank/octorank/internal/scoring/httpclient"
	"github.com/octorank/octorank/internal/service"
	"github.com/octorank/octorank/internal/store"
	"github.com/octorank/octorank/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	st := store.NewPostgresStore(db)

	// Payment providers: only configured providers are registered.
	var providers []billing.CheckoutProvider
	if cfg.StripeSecretKey != "" {
		providers = append(providers, billing.NewStripeProvider(
			cfg.StripeSecretKey,
			cfg.StripeWebhookSecret,
			billing.StripePriceConfig{
				StarterMonthlyPriceID:    cfg.StripeStarterMonthlyPriceID,
				StarterAnnualPriceID:     cfg.StripeStarterAnnualPriceID,
				RecruiterMonthlyPriceID:  cfg.StripeRecruiterMonthlyPriceID,
				RecruiterAnnualPriceID:   cfg.StripeRecruiterAnnualPriceID,
				EnterpriseMonthlyPriceID: cfg.StripeEnterpriseMonthlyPriceID,
				EnterpriseAnnualPriceID:  cfg.StripeEnterpriseAnnualPriceID,
			},
			cfg.ProviderTimeout,
		))
	}
	if cfg.PayPalClientID != "" {
		providers = append(providers, billing.NewPayPalProvider(
			cfg.PayPalClientID,
			cfg.PayPalClientSecret,
			cfg.PayPalBaseURL,
			cfg.PayPalWebhookID,
			billing.PayPalPlanConfig{
				StarterMonthlyPlanID:    cfg.PayPalStarterMonthlyPlanID,
				StarterAnnualPlanID:     cfg.PayPalStarterAnnualPlanID,
				RecruiterMonthlyPlanID:  cfg.PayPalRecruiterMonthlyPlanID,
				RecruiterAnnualPlanID:   cfg.PayPalRecruiterAnnualPlanID,
				EnterpriseMonthlyPlanID: cfg.PayPalEnterpriseMonthlyPlanID,
				EnterpriseAnnualPlanID:  cfg.PayPalEnterpriseAnnualPlanID,
			},
			cfg.ProviderTimeout,
		))
	}
	registry := billing.NewRegistry(providers...)
	logger.Info("Payment providers registered", "providers", registry.Names())

	// Score oracle
	oracle := httpclient.New(cfg.OracleBaseURL, cfg.OracleTimeout, logger)

	// Background workers
	historyRecorder := worker.NewHistoryRecorder(st, cfg.HistoryBufferSize, logger)
	historyRecorder.Start()

	// Initialize services
	entitlementService := service.NewEntitlementService(st, logger)
	quotaService := service.NewQuotaService(st, logger)
	gateService := service.NewGateService(entitlementService, quotaService, oracle, historyRecorder, logger)
	checkoutService := service.NewCheckoutService(registry, st, logger)
	reconcilerService := service.NewReconcilerService(st, logger)

	var poller *worker.ReconcilePoller
	if cfg.ReconcileEnabled {
		poller = worker.NewReconcilePoller(st, registry, reconcilerService,
			cfg.ReconcileInterval, cfg.ReconcilePendingAge, logger)
		poller.Start(ctx)
	}

	// Initialize middleware
	verifier := identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	authMw := middleware.NewAuthMiddleware(verifier, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, logger)

	// Initialize handlers
	scoreHandler := handler.NewScoreHandler(gateService, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(checkoutService, gateService, logger)
	webhookHandler := handler.NewWebhookHandler(registry, reconcilerService, logger)
	historyHandler := handler.NewHistoryHandler(st, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Webhooks (public, rate limited, provider-authenticated via signatures)
	mux.Handle("POST /webhooks/{provider}",
		rateLimiter.Handler(http.HandlerFunc(webhookHandler.Receive)))

	// Authenticated API
	requireIdentity := middleware.Stack(rateLimiter.Handler, authMw.WithIdentity, authMw.RequireIdentity)

	mux.Handle("GET /api/score-limit", requireIdentity(http.HandlerFunc(scoreHandler.Limits)))
	mux.Handle("POST /api/score-limit", requireIdentity(http.HandlerFunc(scoreHandler.Query)))
	mux.Handle("POST /api/subscriptions/create", requireIdentity(http.HandlerFunc(subscriptionHandler.Create)))
	mux.Handle("GET /api/subscriptions/details", requireIdentity(http.HandlerFunc(subscriptionHandler.Details)))
	mux.Handle("GET /api/search-history", requireIdentity(http.HandlerFunc(historyHandler.List)))

	// Outer middleware: request logging and HTTP metrics around everything.
	root := middleware.Stack(loggingMw.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if poller != nil {
		poller.Stop()
	}
	historyRecorder.Stop()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
