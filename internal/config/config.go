// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the snapshot database (always absolute)
	Port           int
	DevMode        bool
	LogLevel       string
	BackendBaseURL string // Portfolio tracker REST backend
	PriceStreamURL string // Optional websocket quote feed; empty disables it

	SearchDebounce   time.Duration // Quiet window for per-row symbol search
	AutosaveDebounce time.Duration // Quiet window for draft autosave
	HydrateDelay     time.Duration // Spacing between hydration requests
	SnapshotTTL      time.Duration // Stored snapshot expiration
	MinQueryLen      int           // Minimum search query length
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIODRAFT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BackendBaseURL:   getEnv("BACKEND_BASE_URL", "http://localhost:3000"),
		PriceStreamURL:   getEnv("PRICE_STREAM_URL", ""),
		SearchDebounce:   getEnvAsMillis("SEARCH_DEBOUNCE_MS", 300),
		AutosaveDebounce: getEnvAsMillis("AUTOSAVE_DEBOUNCE_MS", 1500),
		HydrateDelay:     getEnvAsMillis("HYDRATE_DELAY_MS", 250),
		SnapshotTTL:      getEnvAsMillis("SNAPSHOT_TTL_MS", int((8 * time.Hour).Milliseconds())),
		MinQueryLen:      getEnvAsInt("MIN_QUERY_LEN", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
