package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for checkout redirect URLs)
	BaseURL string

	// Identity verification (JWT bearer tokens issued by the auth collaborator)
	JWTSecret string
	JWTIssuer string

	// Score oracle (remote scoring API)
	OracleBaseURL string
	OracleTimeout time.Duration

	// Payment provider API call timeout. Checkout fails closed on timeout:
	// no local record is created and the caller retries the whole checkout.
	ProviderTimeout time.Duration

	// Stripe Billing Configuration
	// These are required when Stripe checkout is enabled in production.
	// In development, the Stripe provider is simply not registered if empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe price IDs per (plan, frequency)
	StripeStarterMonthlyPriceID     string
	StripeStarterAnnualPriceID      string
	StripeRecruiterMonthlyPriceID   string
	StripeRecruiterAnnualPriceID    string
	StripeEnterpriseMonthlyPriceID  string
	StripeEnterpriseAnnualPriceID   string

	// PayPal Billing Configuration
	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string // sandbox by default
	PayPalWebhookID    string // enables webhook signature verification when set

	// PayPal plan IDs per (plan, frequency), created in the PayPal dashboard
	PayPalStarterMonthlyPlanID    string
	PayPalStarterAnnualPlanID     string
	PayPalRecruiterMonthlyPlanID  string
	PayPalRecruiterAnnualPlanID   string
	PayPalEnterpriseMonthlyPlanID string
	PayPalEnterpriseAnnualPlanID  string

	// Reconciliation poll for subscriptions stuck pending (e.g., a lost
	// activation webhook)
	ReconcileEnabled    bool
	ReconcileInterval   time.Duration
	ReconcilePendingAge time.Duration

	// History recorder worker
	HistoryBufferSize int

	// Per-client rate limiting on public endpoints
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "octorank-auth"),

		// Score oracle defaults to the local scoring API
		OracleBaseURL: getEnv("ORACLE_BASE_URL", "http://localhost:3001"),
		OracleTimeout: getEnvDuration("ORACLE_TIMEOUT", 30*time.Second),

		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),

		// Stripe billing (optional — provider is not registered without these)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeStarterMonthlyPriceID:    getEnv("STRIPE_STARTER_MONTHLY_PRICE_ID", ""),
		StripeStarterAnnualPriceID:     getEnv("STRIPE_STARTER_ANNUAL_PRICE_ID", ""),
		StripeRecruiterMonthlyPriceID:  getEnv("STRIPE_RECRUITER_MONTHLY_PRICE_ID", ""),
		StripeRecruiterAnnualPriceID:   getEnv("STRIPE_RECRUITER_ANNUAL_PRICE_ID", ""),
		StripeEnterpriseMonthlyPriceID: getEnv("STRIPE_ENTERPRISE_MONTHLY_PRICE_ID", ""),
		StripeEnterpriseAnnualPriceID:  getEnv("STRIPE_ENTERPRISE_ANNUAL_PRICE_ID", ""),

		// PayPal billing (optional, sandbox API by default)
		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalBaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalWebhookID:    getEnv("PAYPAL_WEBHOOK_ID", ""),

		PayPalStarterMonthlyPlanID:    getEnv("PAYPAL_STARTER_MONTHLY_PLAN_ID", ""),
		PayPalStarterAnnualPlanID:     getEnv("PAYPAL_STARTER_ANNUAL_PLAN_ID", ""),
		PayPalRecruiterMonthlyPlanID:  getEnv("PAYPAL_RECRUITER_MONTHLY_PLAN_ID", ""),
		PayPalRecruiterAnnualPlanID:   getEnv("PAYPAL_RECRUITER_ANNUAL_PLAN_ID", ""),
		PayPalEnterpriseMonthlyPlanID: getEnv("PAYPAL_ENTERPRISE_MONTHLY_PLAN_ID", ""),
		PayPalEnterpriseAnnualPlanID:  getEnv("PAYPAL_ENTERPRISE_ANNUAL_PLAN_ID", ""),

		// Reconciliation poll defaults
		ReconcileEnabled:    getEnvBool("RECONCILE_ENABLED", true),
		ReconcileInterval:   getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcilePendingAge: getEnvDuration("RECONCILE_PENDING_AGE", time.Hour),

		HistoryBufferSize: getEnvInt("HISTORY_BUFFER_SIZE", 256),

		// Rate limiting defaults
		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Stripe configuration must be all-or-nothing
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	// PayPal credentials come in pairs
	if (cfg.PayPalClientID == "") != (cfg.PayPalClientSecret == "") {
		return nil, fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET must be set together")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
