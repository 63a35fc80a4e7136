// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port          string
	AppEnv        string
	APIKeySecret  string
	PublicBaseURL string // browser-facing base of this service, e.g. "https://img.example.com"

	// Metadata store: "redis" in production, "badger" for a self-contained
	// local instance.
	MetaBackend string
	RedisURL    string
	BadgerPath  string

	// Object storage (S3-compatible: MinIO locally, AWS S3 in production)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// Lifetimes of the presigned URLs handed to clients.
	PresignPutTTL time.Duration
	PresignGetTTL time.Duration
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "development"),
		APIKeySecret:  getEnv("API_KEY_SECRET", "change_me_in_production"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		MetaBackend: getEnv("META_BACKEND", "redis"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		BadgerPath:  getEnv("BADGER_PATH", "./data/badger"),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "images"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",

		PresignPutTTL: getEnvSeconds("PRESIGN_PUT_TTL", 3600),
		PresignGetTTL: getEnvSeconds("PRESIGN_GET_TTL", 3600),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("config: invalid %s=%q, using %ds", key, v, fallback)
	}
	return time.Duration(fallback) * time.Second
}
