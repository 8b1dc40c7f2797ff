package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/taskforge/rewards/internal/errors"
)

// Config holds all engine configuration, loaded once from the environment.
type Config struct {
	// Server
	Port          string
	WebhookSecret string

	// Storage
	DataDir   string
	RedisAddr string // optional; empty disables the settled-task marker

	// Collaborator endpoints
	TrackerBaseURL string
	TrackerToken   string
	OracleBaseURL  string
	OracleToken    string
	SignerBaseURL  string
	SignerToken    string

	// Relevance sampling
	RelevanceBatchWidth int // parallel identical requests per batch
	RelevanceBatches    int // outer batch repetitions
	RelevancePrecision  int // decimal places for batch averages

	// Settlement
	MaxPayout     string // maximum permitted single payout, e.g. "1000"
	ReceiptCaller string
	OracleRPS     float64
	SignerRPS     float64
}

// Load reads configuration from the environment. A local .env file is
// honored when present; missing optional keys fall back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		DataDir:             getEnvOrDefault("DATA_DIR", "./data"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		TrackerBaseURL:      os.Getenv("TRACKER_BASE_URL"),
		TrackerToken:        os.Getenv("TRACKER_TOKEN"),
		OracleBaseURL:       os.Getenv("ORACLE_BASE_URL"),
		OracleToken:         os.Getenv("ORACLE_TOKEN"),
		SignerBaseURL:       os.Getenv("SIGNER_BASE_URL"),
		SignerToken:         os.Getenv("SIGNER_TOKEN"),
		RelevanceBatchWidth: getEnvInt("RELEVANCE_BATCH_WIDTH", 3),
		RelevanceBatches:    getEnvInt("RELEVANCE_BATCHES", 2),
		RelevancePrecision:  getEnvInt("RELEVANCE_PRECISION", 2),
		MaxPayout:           getEnvOrDefault("MAX_PAYOUT", "1000"),
		ReceiptCaller:       getEnvOrDefault("RECEIPT_CALLER", "settle"),
		OracleRPS:           getEnvFloat("ORACLE_RPS", 2),
		SignerRPS:           getEnvFloat("SIGNER_RPS", 5),
	}

	if cfg.TrackerBaseURL == "" {
		return nil, errors.NewConfigurationError("TRACKER_BASE_URL is required", nil)
	}
	if cfg.RelevanceBatchWidth < 1 {
		return nil, errors.NewConfigurationError("RELEVANCE_BATCH_WIDTH must be at least 1", nil)
	}
	if cfg.RelevanceBatches < 1 {
		return nil, errors.NewConfigurationError("RELEVANCE_BATCHES must be at least 1", nil)
	}
	if cfg.RelevancePrecision < 0 || cfg.RelevancePrecision > 10 {
		return nil, errors.NewConfigurationError("RELEVANCE_PRECISION must be between 0 and 10", nil)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
