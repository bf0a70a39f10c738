package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server ServerConfig
	Client ClientConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	JWTSecret   string
	TokenTTL    time.Duration
}

type ClientConfig struct {
	APIBaseURL     string
	LiveURL        string
	RequestTimeout time.Duration
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			JWTSecret:   getEnv("JWT_SECRET", "givebridge-dev-secret"),
			TokenTTL:    getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		},
		Client: ClientConfig{
			APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
			LiveURL:        getEnv("LIVE_URL", "ws://localhost:8080/ws"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
