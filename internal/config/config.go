package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the admin server.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	GoogleClientID string
	AdminEmails    []string
	CORSOrigins    []string

	Cloudinary CloudinaryConfig
	Images     ImageConfig
	RateLimit  RateLimitConfig
}

// CloudinaryConfig carries the CDN credentials. URL takes precedence over the individual fields.
type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Configured reports whether enough credentials are present to build a client.
func (c CloudinaryConfig) Configured() bool {
	if c.URL != "" {
		return true
	}
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// ImageConfig controls the image upload pipeline.
type ImageConfig struct {
	Timeout       time.Duration
	Retries       int
	MaxConcurrent int
	MaxBytes      int64
	MaxWidth      int
	MaxPerRecord  int
}

// RateLimitConfig controls the per-client HTTP limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath        = "./data/parkadmin.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second
	defaultCORSOrigin    = "http://localhost:3000"

	defaultImageTimeout       = 60 * time.Second
	defaultImageRetries       = 0
	defaultImageMaxConcurrent = 5
	defaultImageMaxBytes      = 15 << 20
	defaultImageMaxWidth      = 1200
	defaultImageMaxPerRecord  = 10

	defaultRateLimitRPS       = 10.0
	defaultRateLimitBurst     = 40
	defaultRateLimitClientTTL = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:         getEnv("DB_PATH", defaultDBPath),
		LogLevel:       getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Environment:    getEnv("ENV", defaultEnvironment),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		AdminEmails:    splitList(os.Getenv("ADMIN_EMAILS"), true),
		CORSOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigin), false),
		Cloudinary: CloudinaryConfig{
			URL:       os.Getenv("CLOUDINARY_URL"),
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:    getEnv("CLOUDINARY_FOLDER", "highlights"),
		},
	}

	var err error

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	if cfg.ServerPort, err = strconv.Atoi(portValue); err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}

	if cfg.ShutdownGrace, err = getDuration("SHUTDOWN_GRACE", defaultShutdownGrace); err != nil {
		return nil, err
	}

	if cfg.Images, err = loadImageConfig(); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = loadRateLimitConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadImageConfig() (ImageConfig, error) {
	var (
		cfg ImageConfig
		err error
	)

	if cfg.Timeout, err = getDuration("IMAGE_TIMEOUT", defaultImageTimeout); err != nil {
		return cfg, err
	}
	if cfg.Retries, err = getInt("IMAGE_RETRIES", defaultImageRetries); err != nil {
		return cfg, err
	}
	if cfg.MaxConcurrent, err = getInt("IMAGE_MAX_CONCURRENT", defaultImageMaxConcurrent); err != nil {
		return cfg, err
	}
	maxBytes, err := getInt("IMAGE_MAX_BYTES", defaultImageMaxBytes)
	if err != nil {
		return cfg, err
	}
	cfg.MaxBytes = int64(maxBytes)
	if cfg.MaxWidth, err = getInt("IMAGE_MAX_WIDTH", defaultImageMaxWidth); err != nil {
		return cfg, err
	}
	if cfg.MaxPerRecord, err = getInt("IMAGE_MAX_PER_RECORD", defaultImageMaxPerRecord); err != nil {
		return cfg, err
	}

	if cfg.Retries < 0 {
		return cfg, eris.Errorf("IMAGE_RETRIES must not be negative, got %d", cfg.Retries)
	}
	if cfg.MaxConcurrent <= 0 {
		return cfg, eris.Errorf("IMAGE_MAX_CONCURRENT must be positive, got %d", cfg.MaxConcurrent)
	}

	return cfg, nil
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{
		RequestsPerSecond: defaultRateLimitRPS,
	}

	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", raw)
		}
		cfg.RequestsPerSecond = value
	}

	var err error
	if cfg.Burst, err = getInt("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return cfg, err
	}
	if cfg.ClientTTL, err = getDuration("RATE_LIMIT_CLIENT_TTL", defaultRateLimitClientTTL); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func splitList(raw string, lower bool) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lower {
			part = strings.ToLower(part)
		}
		out = append(out, part)
	}
	return out
}
