package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port           string
	Env            string
	RequestTimeout time.Duration

	// Database
	DatabaseURL string

	// Redis
	RedisURL        string
	CatalogCacheTTL time.Duration

	// JWT
	JWTSecret string

	// Rate limiting on progress mutations, per student per minute
	RateLimitPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		RequestTimeout:     time.Duration(getEnvAsIntOrDefault("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		DatabaseURL:        mustGetEnv("DATABASE_URL"),
		RedisURL:           mustGetEnv("REDIS_URL"),
		CatalogCacheTTL:    time.Duration(getEnvAsIntOrDefault("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		JWTSecret:          mustGetEnv("JWT_SECRET"),
		RateLimitPerMinute: getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
