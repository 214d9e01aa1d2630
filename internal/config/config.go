// SPDX-License-Identifier: MIT

// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/altqx/akane/internal/log"
)

// Config holds the full service configuration.
type Config struct {
	// HTTP
	ListenAddr         string
	AllowedOrigins     []string
	RateLimitPerMinute int // per-IP API request cap, 0 disables

	// Object store (R2 / S3-compatible)
	StoreEndpoint  string
	StoreBucket    string
	StoreAccessKey string
	StoreSecretKey string
	PublicBaseURL  string

	// Auth
	SecretKey     string // HMAC key for playback tokens
	AdminPassword string // bearer token for the management API

	// Transcoding
	Encoder              string // ffmpeg video encoder name, e.g. h264_nvenc
	MaxConcurrentEncodes int
	MaxConcurrentUploads int

	// Scratch space for uploads and HLS output
	ScratchDir string

	// Relational store
	DatabasePath string

	// Analytics warehouse (optional)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string

	// Logging
	LogLevel string
}

// FromEnv builds the configuration from environment variables.
// Missing object-store settings are a hard error; missing secrets are
// generated and logged so a fresh deployment works out of the box.
func FromEnv() (Config, error) {
	logger := log.WithComponent("config")

	cfg := Config{
		ListenAddr:           ParseString("LISTEN_ADDR", ":3000"),
		RateLimitPerMinute:   ParseInt("RATE_LIMIT_PER_MINUTE", 300),
		StoreEndpoint:        os.Getenv("R2_ENDPOINT"),
		StoreBucket:          os.Getenv("R2_BUCKET"),
		StoreAccessKey:       os.Getenv("R2_ACCESS_KEY_ID"),
		StoreSecretKey:       os.Getenv("R2_SECRET_ACCESS_KEY"),
		SecretKey:            os.Getenv("SECRET_KEY"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		Encoder:              ParseString("FFMPEG_ENCODER", "libx264"),
		MaxConcurrentEncodes: ParseInt("MAX_CONCURRENT_ENCODES", 1),
		MaxConcurrentUploads: ParseInt("MAX_CONCURRENT_UPLOADS", 30),
		ScratchDir:           ParseString("SCRATCH_DIR", os.TempDir()),
		DatabasePath:         ParseString("DATABASE_PATH", "akane.db"),
		ClickHouseAddr:       ParseString("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase:   ParseString("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUser:       ParseString("CLICKHOUSE_USER", "default"),
		ClickHousePassword:   os.Getenv("CLICKHOUSE_PASSWORD"),
		LogLevel:             ParseString("LOG_LEVEL", "info"),
	}

	var missing []string
	if cfg.StoreEndpoint == "" {
		missing = append(missing, "R2_ENDPOINT")
	}
	if cfg.StoreBucket == "" {
		missing = append(missing, "R2_BUCKET")
	}
	if cfg.StoreAccessKey == "" {
		missing = append(missing, "R2_ACCESS_KEY_ID")
	}
	if cfg.StoreSecretKey == "" {
		missing = append(missing, "R2_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg.PublicBaseURL = ParseString("R2_PUBLIC_BASE_URL",
		strings.TrimSuffix(cfg.StoreEndpoint, "/")+"/"+cfg.StoreBucket)
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")

	if cfg.SecretKey == "" {
		cfg.SecretKey = uuid.New().String()
		logger.Warn().
			Str("secret_key", cfg.SecretKey).
			Msg("SECRET_KEY not set, generated one; playback tokens will not survive restarts")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = uuid.New().String()
		logger.Warn().
			Str("admin_password", cfg.AdminPassword).
			Msg("ADMIN_PASSWORD not set, generated one")
	}

	if origins := ParseString("ALLOWED_ORIGINS", "*"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.MaxConcurrentEncodes < 1 {
		return Config{}, errors.New("MAX_CONCURRENT_ENCODES must be at least 1")
	}
	if cfg.MaxConcurrentUploads < 1 {
		return Config{}, errors.New("MAX_CONCURRENT_UPLOADS must be at least 1")
	}
	if cfg.RateLimitPerMinute < 0 {
		return Config{}, errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return cfg, nil
}

// AnalyticsEnabled reports whether a ClickHouse warehouse is configured.
func (c Config) AnalyticsEnabled() bool {
	return c.ClickHouseAddr != ""
}
