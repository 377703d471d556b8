package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence
	DBPath string

	// Rate pipeline
	TickerURL        string
	RateCurrency     string
	RatePollInterval time.Duration

	// Ledger
	PageSize int

	// Reachability probe
	ProbeURL      string
	ProbeInterval time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath: getEnv("DB_PATH", "./bitledger.db"),

		TickerURL:        getEnv("TICKER_URL", "https://blockchain.info/ticker"),
		RateCurrency:     getEnv("RATE_CURRENCY", "USD"),
		RatePollInterval: getEnvDuration("RATE_POLL_INTERVAL", 120*time.Second),

		PageSize: getEnvInt("PAGE_SIZE", 20),

		ProbeURL:      getEnv("PROBE_URL", "https://blockchain.info"),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 5*time.Second),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
