package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	DatabaseType string
	DatabaseURL  string
	DatabasePath string

	MigrationsPath string

	// SecretKey signs password reset tokens. Rotating it invalidates
	// every outstanding reset link.
	SecretKey          string
	SessionDuration    time.Duration
	ResetTokenValidity time.Duration

	AppBaseURL string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	GoogleClientID     string
	GoogleClientSecret string
	AppleClientID      string
	AppleClientSecret  string

	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort: getEnv("PORT", "8080"),

		DatabaseType: getEnv("DB_TYPE", "sqlite"),
		DatabaseURL:  getEnv("DB_URL", ""),
		DatabasePath: getEnv("DB_PATH", "./accountd.db"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		SecretKey:          getEnv("SECRET_KEY", "insecure-dev-secret-change-me"),
		SessionDuration:    getDuration("SESSION_DURATION", 24*time.Hour),
		ResetTokenValidity: getDuration("RESET_TOKEN_VALIDITY", 24*time.Hour),

		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),

		AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Accountd"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		AppleClientID:      getEnv("APPLE_CLIENT_ID", ""),
		AppleClientSecret:  getEnv("APPLE_CLIENT_SECRET", ""),

		LoginRateLimit:  getInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getDuration("LOGIN_RATE_WINDOW", time.Minute),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration reads a duration environment variable (e.g. "30m", "24h")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getInt reads an integer environment variable
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
