package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Remote API (system of record)
	APIBaseURL string
	APIToken   string // optional bearer token passed through to the API
	APITimeout time.Duration

	// Grid behaviour
	DeleteConcurrency int

	// Calendar used for the sales date window and new sale defaults
	Timezone string
	Location *time.Location

	// Browser workspaces are dropped after this long without a request,
	// or when more than SessionMax are live (least recently used first)
	SessionIdleTimeout time.Duration
	SessionMax         int

	// Screen actions allowed per visitor within RateLimitWindow
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Optional. When empty, display preferences are kept in memory.
	DatabaseUrl string

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

		APIBaseURL: getEnv("API_BASE_URL", "https://api.fazendasaopedro.appsirius.com/api"),
		APIToken:   getEnv("API_TOKEN", ""),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),

		DeleteConcurrency: getEnvInt("DELETE_CONCURRENCY", 4),

		Timezone:           getEnv("TIMEZONE", "America/Sao_Paulo"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		SessionMax:         getEnvInt("SESSION_MAX", 1000),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		DatabaseUrl: getEnv("DATABASE_URL", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL must be an absolute URL, got: %q", cfg.APIBaseURL)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q is not a known time zone: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.DeleteConcurrency < 1 {
		cfg.DeleteConcurrency = 4
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 15 * time.Second
	}
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = 2 * time.Hour
	}
	if cfg.SessionMax < 1 {
		cfg.SessionMax = 1000
	}
	if cfg.RateLimitRequests < 1 {
		cfg.RateLimitRequests = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
