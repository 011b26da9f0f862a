// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// SecretKey is the shared signing key for upload authorizations,
	// supplied as 64 hex characters (32 bytes).
	SecretKey []byte

	// Upstream authority (confirmation endpoint).
	UpstreamURL     string
	UpstreamBearer  string
	UpstreamTimeout time.Duration

	// BaseURL is the public base under which variants are served,
	// e.g. "https://media.wanderhosts.com".
	BaseURL string

	// ThumbnailSize is the side length of the square thumbnail variant.
	ThumbnailSize int

	// Blob storage: "local" writes under StoragePath, "minio" uses the
	// S3-compatible endpoint below.
	StorageBackend   string
	StoragePath      string
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
}

// Load reads configuration from a .env file (if present) and environment
// variables, validating what the service cannot run without.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "5001"),
		AppEnv: getEnv("APP_ENV", "development"),

		UpstreamURL:    getEnv("UPSTREAM_URL", ""),
		UpstreamBearer: getEnv("UPSTREAM_BEARER_TOKEN", ""),

		BaseURL: getEnv("BASE_URL", "http://localhost:5001"),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StoragePath:      getEnv("STORAGE_PATH", "./uploads"),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "media"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
	}

	secretHex := getEnv("SECRET_KEY", "")
	if secretHex == "" {
		return nil, errors.New("SECRET_KEY is required")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY is not valid hex: %w", err)
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("SECRET_KEY must be 32 bytes, got %d", len(secret))
	}
	cfg.SecretKey = secret

	if cfg.UpstreamURL == "" {
		return nil, errors.New("UPSTREAM_URL is required")
	}
	if cfg.UpstreamBearer == "" {
		return nil, errors.New("UPSTREAM_BEARER_TOKEN is required")
	}

	size, err := strconv.Atoi(getEnv("THUMBNAIL_SIZE", "200"))
	if err != nil || size <= 0 {
		return nil, errors.New("THUMBNAIL_SIZE must be a positive integer")
	}
	cfg.ThumbnailSize = size

	timeout, err := time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return nil, errors.New("UPSTREAM_TIMEOUT must be a positive duration")
	}
	cfg.UpstreamTimeout = timeout

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "minio" {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
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
