package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pharmintel/pharmawatch/internal/compare"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// MongoDB configuration
	MongoURI                string
	MongoDatabase           string
	NotificationsCollection string
	SnapshotsCollection     string

	// Blob storage for uploaded session documents
	StorageAccount   string
	StorageContainer string

	// Live agent service (optional; Mongo snapshots are used when unset)
	AgentAPIBaseURL string
	AgentAPITimeout time.Duration

	// Sweep configuration
	SweepEnabled  bool
	SweepSchedule string // "hourly", "daily" or "weekly"
	SweepDelay    time.Duration
	SweepFanOut   int

	// Severity policy. Tunable constants, not hard invariants.
	TradeLowDelta    float64
	TradeMediumDelta float64
	TradeHighDelta   float64
	YoYFlipDelta     float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	defaults := compare.DefaultThresholds()

	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "pharmawatch"),
		NotificationsCollection: getEnv("MONGO_NOTIFICATIONS_COLLECTION", "notifications"),
		SnapshotsCollection:     getEnv("MONGO_SNAPSHOTS_COLLECTION", "agent_snapshots"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "session-documents"),

		AgentAPIBaseURL: getEnv("AGENT_API_BASE_URL", ""),
		AgentAPITimeout: getDurationEnv("AGENT_API_TIMEOUT", 30*time.Second),

		SweepEnabled:  getBoolEnv("SWEEP_ENABLED", false),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "daily"),
		SweepDelay:    getDurationEnv("SWEEP_DELAY", 3*time.Second),
		SweepFanOut:   getIntEnv("SWEEP_FAN_OUT", 4),

		TradeLowDelta:    getFloatEnv("TRADE_LOW_DELTA", defaults.TradeLowDelta),
		TradeMediumDelta: getFloatEnv("TRADE_MEDIUM_DELTA", defaults.TradeMediumDelta),
		TradeHighDelta:   getFloatEnv("TRADE_HIGH_DELTA", defaults.TradeHighDelta),
		YoYFlipDelta:     getFloatEnv("YOY_FLIP_DELTA", defaults.YoYFlipDelta),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Thresholds returns the configured severity policy for the comparator.
func (c *Config) Thresholds() compare.Thresholds {
	return compare.Thresholds{
		TradeLowDelta:    c.TradeLowDelta,
		TradeMediumDelta: c.TradeMediumDelta,
		TradeHighDelta:   c.TradeHighDelta,
		YoYFlipDelta:     c.YoYFlipDelta,
	}
}

func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	switch c.SweepSchedule {
	case "hourly", "daily", "weekly":
	default:
		return fmt.Errorf("SWEEP_SCHEDULE must be 'hourly', 'daily' or 'weekly'")
	}

	if c.SweepFanOut < 1 {
		return fmt.Errorf("SWEEP_FAN_OUT must be at least 1")
	}
	if c.SweepDelay < 0 {
		return fmt.Errorf("SWEEP_DELAY must not be negative")
	}

	if !(c.TradeLowDelta <= c.TradeMediumDelta && c.TradeMediumDelta <= c.TradeHighDelta) {
		return fmt.Errorf("trade severity thresholds must be ordered low <= medium <= high")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
