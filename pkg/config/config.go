package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Fetch       FetchConfig
	Wheel       WheelConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// FetchConfig holds venue fetch configuration
type FetchConfig struct {
	Mirrors   []string
	BaseDelay time.Duration
	DelayStep time.Duration
}

// WheelConfig holds wheel animation configuration
type WheelConfig struct {
	SpinDuration time.Duration
}

// Load loads configuration from a .env file (if present) and environment
// variables
func Load() (Config, error) {
	// Missing .env is fine; the environment wins either way
	_ = godotenv.Load()

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "grubwheel.db"),
		},
		Fetch: FetchConfig{
			Mirrors: getEnvAsSlice("FETCH_MIRRORS", []string{
				"https://overpass-api.de/api/interpreter",
				"https://overpass.kumi.systems/api/interpreter",
				"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
			}),
			BaseDelay: getEnvAsDuration("FETCH_BASE_DELAY", 500*time.Millisecond),
			DelayStep: getEnvAsDuration("FETCH_DELAY_STEP", 750*time.Millisecond),
		},
		Wheel: WheelConfig{
			SpinDuration: getEnvAsDuration("WHEEL_SPIN_DURATION", 4*time.Second),
		},
	}

	return config, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
