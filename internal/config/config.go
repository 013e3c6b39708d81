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

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Decision engine settings
	AutoEnroll          bool    // bootstrap unknown users from their first sample
	PassThreshold       float64 // anomaly score below which a clean sample passes
	EscalateThreshold   float64 // anomaly score at which fusion is invoked directly
	SimilarityThreshold float64 // similarity verification cutoff (inclusive)
	BlockThreshold      float64 // fused risk above which the session is blocked
	ReviewThreshold     float64 // fused risk above which a manual review is queued

	// NormalizerParams is a path to the offline-fitted scaler JSON. Empty
	// uses the baked-in reference population parameters.
	NormalizerParams string

	// Security
	RateLimitRPM int
	AdminSecret  string // Admin API secret

	// Tracing
	OTLPEndpoint string // OTLP gRPC collector address (optional)
}

const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultRateLimit           = 120
	DefaultPassThreshold       = 0.8
	DefaultEscalateThreshold   = 2.0
	DefaultSimilarityThreshold = 0.8
	DefaultBlockThreshold      = 0.6
	DefaultReviewThreshold     = 0.35
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AutoEnroll:          getEnvBool("AUTO_ENROLL", true),
		PassThreshold:       getEnvFloat("PASS_THRESHOLD", DefaultPassThreshold),
		EscalateThreshold:   getEnvFloat("ESCALATE_THRESHOLD", DefaultEscalateThreshold),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
		BlockThreshold:      getEnvFloat("BLOCK_THRESHOLD", DefaultBlockThreshold),
		ReviewThreshold:     getEnvFloat("REVIEW_THRESHOLD", DefaultReviewThreshold),
		NormalizerParams:    os.Getenv("NORMALIZER_PARAMS"),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configured thresholds are coherent
func (c *Config) Validate() error {
	if c.PassThreshold <= 0 || c.PassThreshold >= c.EscalateThreshold {
		return fmt.Errorf("PASS_THRESHOLD must be positive and below ESCALATE_THRESHOLD")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1]")
	}
	if c.BlockThreshold <= c.ReviewThreshold {
		return fmt.Errorf("BLOCK_THRESHOLD must exceed REVIEW_THRESHOLD")
	}
	if c.BlockThreshold > 1 || c.ReviewThreshold < 0 {
		return fmt.Errorf("fusion thresholds must be in [0,1]")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
