package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Market   MarketConfig
	Batch    BatchConfig
	Provider ProviderConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// MarketConfig describes the exchange whose calendar and close time govern
// the batch pipeline.
type MarketConfig struct {
	Timezone    string        // IANA zone of the exchange, e.g. America/New_York
	CloseOffset time.Duration // Market close as offset from midnight exchange time
	CloseBuffer time.Duration // Settle time after close before data is trusted
}

// BatchConfig holds the daily batch pipeline configuration.
type BatchConfig struct {
	Schedule       string        // Cron expression (with seconds field)
	MaxConcurrent  int           // Concurrent portfolios, sized to the DB connection budget
	PhaseTimeout   time.Duration // Per-phase deadline for one portfolio/date
	RunHistorySize int           // Recent runs kept in memory for the monitoring API
}

// ProviderConfig holds market-data provider client configuration.
type ProviderConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts uint64
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/portfolio_ledger.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Market: MarketConfig{
			Timezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
			CloseOffset: getEnvDuration("MARKET_CLOSE_OFFSET", 16*time.Hour),
			CloseBuffer: getEnvDuration("MARKET_CLOSE_BUFFER", 30*time.Minute),
		},
		Batch: BatchConfig{
			Schedule:       getEnv("BATCH_SCHEDULE", "0 45 16 * * MON-FRI"),
			MaxConcurrent:  getEnvInt("BATCH_MAX_CONCURRENT", 4),
			PhaseTimeout:   getEnvDuration("BATCH_PHASE_TIMEOUT", 60*time.Second),
			RunHistorySize: getEnvInt("BATCH_RUN_HISTORY", 50),
		},
		Provider: ProviderConfig{
			BaseURL:       getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:       getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
			RetryAttempts: uint64(getEnvInt("PROVIDER_RETRY_ATTEMPTS", 3)),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
