// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by StorageDriver.
const (
	DriverLocal = "local"
	DriverMinio = "minio"
)

// Config holds all runtime configuration for the service.
// It is built once at startup and never mutated afterwards.
type Config struct {
	Port   string
	AppEnv string

	// Basic auth credentials guarding the upload pages.
	AuthUser     string
	AuthPassword string

	// Shlink link shortener
	ShlinkAPI            string
	ShlinkAPIKey         string
	ShortenerTimeout     time.Duration
	ShortenerMaxRetries  uint64
	ShortenerRetryPeriod time.Duration

	// FullHost is the public base URL used to build long file links, e.g. "https://share.example.com".
	FullHost string

	StorageDriver string
	DataDir       string

	// Object storage (S3-compatible), only read when StorageDriver is "minio".
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StorageRegion    string
	// StoragePartSize is the multipart chunk size, and so the per-upload buffer, in bytes.
	StoragePartSize uint64

	UploadMaxBytes  int64
	UploadRateLimit float64
	UploadRateBurst int
	// TransferTimeout bounds a single upload or download body, replacing the
	// server-wide read and write timeouts on those routes.
	TransferTimeout time.Duration

	// TrustProxyHeaders makes the client IP come from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from a .env file (if present) and environment variables.
// It fails when a required variable is missing or a value cannot be parsed.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := &envReader{getenv: getenv}

	cfg := &Config{
		Port:   e.str("PORT", "3000"),
		AppEnv: e.str("APP_ENV", "production"),

		AuthUser:     e.required("BASIC_AUTH_USER"),
		AuthPassword: e.required("BASIC_AUTH_PASS"),

		ShlinkAPI:            strings.TrimRight(e.required("SHLINK_API"), "/"),
		ShlinkAPIKey:         e.required("SHLINK_API_KEY"),
		ShortenerTimeout:     e.duration("SHORTENER_TIMEOUT", 10*time.Second),
		ShortenerMaxRetries:  uint64(e.integer("SHORTENER_MAX_RETRIES", 0)),
		ShortenerRetryPeriod: e.duration("SHORTENER_RETRY_PERIOD", 500*time.Millisecond),

		FullHost: strings.TrimRight(e.required("FULL_HOST"), "/"),

		StorageDriver: strings.ToLower(e.str("STORAGE_DRIVER", DriverLocal)),
		DataDir:       e.str("DATA_DIR", "./data"),

		StorageEndpoint:  e.str("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: e.str("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: e.str("STORAGE_SECRET_KEY", ""),
		StorageBucket:    e.str("STORAGE_BUCKET", "quickshare"),
		StorageUseSSL:    e.boolean("STORAGE_USE_SSL", false),
		StorageRegion:    e.str("STORAGE_REGION", ""),
		StoragePartSize:  uint64(e.integer("STORAGE_PART_SIZE_MB", 16)) << 20,

		UploadMaxBytes:  int64(e.integer("UPLOAD_MAX_BYTES", 100<<20)),
		UploadRateLimit: e.float("UPLOAD_RATE_LIMIT", 1),
		UploadRateBurst: e.integer("UPLOAD_RATE_BURST", 5),
		TransferTimeout: e.duration("TRANSFER_TIMEOUT", time.Hour),

		TrustProxyHeaders: e.boolean("TRUST_PROXY_HEADERS", false),

		LogLevel:      e.str("LOG_LEVEL", "info"),
		LogPath:       e.str("LOG_PATH", ""),
		LogMaxSizeMB:  e.integer("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: e.integer("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: e.integer("LOG_MAX_AGE_DAYS", 7),
	}

	switch cfg.StorageDriver {
	case DriverLocal:
	case DriverMinio:
		if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
			e.problems = append(e.problems, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the minio driver")
		}
		// S3 rejects parts under 5 MiB (except the last) and over 5 GiB.
		if cfg.StoragePartSize < 5<<20 || cfg.StoragePartSize > 5<<30 {
			e.problems = append(e.problems, "STORAGE_PART_SIZE_MB: must be between 5 and 5120")
		}
	default:
		e.problems = append(e.problems, fmt.Sprintf("STORAGE_DRIVER: unknown driver %q", cfg.StorageDriver))
	}

	if len(e.missing) > 0 {
		e.problems = append([]string{"missing required variables: " + strings.Join(e.missing, ", ")}, e.problems...)
	}
	if len(e.problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(e.problems, "; "))
	}
	return cfg, nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

type envReader struct {
	getenv   func(string) string
	missing  []string
	problems []string
}

func (e *envReader) str(key, fallback string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) required(key string) string {
	v := e.getenv(key)
	if v == "" {
		e.missing = append(e.missing, key)
	}
	return v
}

func (e *envReader) integer(key string, fallback int) int {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a non-negative integer", key, v))
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (e *envReader) float(key string, fallback float64) float64 {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a number", key, v))
		return fallback
	}
	return f
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return d
}
