// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage backend ("bunny", "s3", "local" or "memory", default: "bunny")
	StorageBackend string

	// Bunny-style HTTP store
	StorageEndpoint  string
	StorageZone      string
	StorageAccessKey string
	CDNBaseURL       string

	// S3-compatible store
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Local filesystem store (development)
	LocalStoragePath string
	LocalPublicBase  string

	// Upload ceilings per media class
	MaxImageBytes int64
	MaxVideoBytes int64

	// Image compression
	CompressTargetBytes    int64
	CompressMaxWidth       int
	CompressInitialQuality int
	CompressQualityStep    int
	CompressQualityFloor   int
	CompressMaxAttempts    int

	// Uploads land here when the request names no folder
	DefaultUploadFolder string
}

// Load reads configuration from the environment (and an optional .env file)
// with defaults.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:    envOr("METRICS_ADDR", ":9090"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "json"),
		StorageBackend: envOr("STORAGE_BACKEND", "bunny"),

		StorageEndpoint:  envOr("STORAGE_ENDPOINT", "https://storage.bunnycdn.com"),
		StorageZone:      envOr("STORAGE_ZONE", ""),
		StorageAccessKey: envOr("STORAGE_ACCESS_KEY", ""),
		CDNBaseURL:       envOr("CDN_BASE_URL", ""),

		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "media"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("S3_USE_SSL", false),

		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "/data/media"),
		LocalPublicBase:  envOr("LOCAL_PUBLIC_BASE", "http://localhost:8080/files"),

		MaxImageBytes: envInt64("MAX_IMAGE_BYTES", 25<<20),
		MaxVideoBytes: envInt64("MAX_VIDEO_BYTES", 200<<20),

		CompressTargetBytes:    envInt64("COMPRESS_TARGET_BYTES", 500<<10),
		CompressMaxWidth:       envInt("COMPRESS_MAX_WIDTH", 1920),
		CompressInitialQuality: envInt("COMPRESS_INITIAL_QUALITY", 85),
		CompressQualityStep:    envInt("COMPRESS_QUALITY_STEP", 10),
		CompressQualityFloor:   envInt("COMPRESS_QUALITY_FLOOR", 40),
		CompressMaxAttempts:    envInt("COMPRESS_MAX_ATTEMPTS", 5),

		DefaultUploadFolder: envOr("DEFAULT_UPLOAD_FOLDER", "uploads"),
	}

	if cfg.StorageBackend == "bunny" {
		if cfg.StorageZone == "" {
			return nil, fmt.Errorf("STORAGE_ZONE is required for the bunny backend")
		}
		if cfg.StorageAccessKey == "" {
			return nil, fmt.Errorf("STORAGE_ACCESS_KEY is required for the bunny backend")
		}
		if cfg.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN_BASE_URL is required for the bunny backend")
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
