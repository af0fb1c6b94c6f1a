// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Databases
	DatabaseURL     string // merchant data (inscriptions, transactions); optional, uses in-memory if not set
	AuthDatabaseURL string // credentials store; defaults to DatabaseURL

	// Classifier
	ModelPath string // path to the serialized classifier artifact; optional, uses built-in fallback if not set

	// Auth
	TokenTTLHours int

	// Security
	RateLimitRPM int

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultTokenTTL  = 10 // hours
	DefaultRateLimit = 60 // requests per minute per client
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AuthDatabaseURL: os.Getenv("AUTH_DATABASE_URL"),
		ModelPath:       os.Getenv("MODEL_PATH"),
		TokenTTLHours:   int(getEnvInt64("TOKEN_TTL_HOURS", DefaultTokenTTL)),
		RateLimitRPM:    int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	// Credentials live in the merchant database unless split out explicitly
	if cfg.AuthDatabaseURL == "" {
		cfg.AuthDatabaseURL = cfg.DatabaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}

	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	if c.ModelPath != "" {
		if _, err := os.Stat(c.ModelPath); err != nil {
			return fmt.Errorf("MODEL_PATH %q is not readable: %w", c.ModelPath, err)
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
