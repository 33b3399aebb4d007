// Package config loads the pipeline configuration from the environment.
//
// A .env file in the working directory is loaded first (when present),
// then individual variables override the defaults. The resulting Config
// is immutable by convention: it is built once in main and passed to the
// orchestrator at construction.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the pipeline.
type Config struct {
	// ServiceName identifies the process in logs and metric names.
	ServiceName string
	// Environment is the deployment environment (development, production).
	Environment string
	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string
	// MetricsAddr, when non-empty, serves Prometheus metrics on this
	// address (e.g. ":9090").
	MetricsAddr string

	// SearchWorkers is the number of API search workers.
	SearchWorkers int
	// DownloadWorkers is the number of datasheet download workers.
	DownloadWorkers int
	// QueueSize bounds the parts, download and results queues.
	QueueSize int

	// RequestsPerMinute caps search API calls across all search workers.
	RequestsPerMinute int
	// ThrottleCooldown is how long a worker pauses after the API reports
	// a rate-limit violation.
	ThrottleCooldown time.Duration

	// MaxAttempts bounds retries for downloads and throttled searches.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// HTTPTimeout applies per search/auth request.
	HTTPTimeout time.Duration
	// DownloadTimeout applies per download attempt.
	DownloadTimeout time.Duration

	// OutputDir is where datasheet PDFs are written.
	OutputDir string
	// ReportDir is where run reports are written.
	ReportDir string
	// Resume skips parts whose datasheet already exists on disk.
	Resume bool

	// APIKeysPath points at the JSON credential store.
	APIKeysPath string
	// ManufacturerDirPath points at the optional manufacturer directory
	// JSON file. Empty disables manufacturer-assisted disambiguation.
	ManufacturerDirPath string

	// TokenURL and SearchURL identify the upstream API endpoints.
	// Overridable for tests and sandbox environments.
	TokenURL  string
	SearchURL string

	// ErrorPauseThreshold is the number of consecutive error results that
	// triggers an automatic cool-down.
	ErrorPauseThreshold int
	// ErrorPause is the cool-down duration.
	ErrorPause time.Duration

	// Archive mirrors successfully downloaded datasheets to object
	// storage when enabled.
	ArchiveEnabled bool
	// ArchiveBackend selects the storage adapter: "fs" or "s3".
	ArchiveBackend string
	// ArchiveFSPath is the base path for the fs backend.
	ArchiveFSPath string
	// S3Bucket and S3Region configure the s3 backend.
	S3Bucket string
	S3Region string
}

// Load builds the configuration from the environment, honoring a local
// .env file when one exists.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:         getEnv("SERVICE_NAME", "datasheet_grabber"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MetricsAddr:         getEnv("METRICS_ADDR", ""),
		SearchWorkers:       getEnvInt("SEARCH_WORKERS", 1),
		DownloadWorkers:     getEnvInt("DOWNLOAD_WORKERS", 5),
		QueueSize:           getEnvInt("QUEUE_SIZE", 1024),
		RequestsPerMinute:   getEnvInt("REQUESTS_PER_MINUTE", 120),
		ThrottleCooldown:    getEnvDuration("THROTTLE_COOLDOWN", time.Minute),
		MaxAttempts:         getEnvInt("MAX_ATTEMPTS", 3),
		BaseBackoff:         getEnvDuration("BASE_BACKOFF", time.Second),
		MaxBackoff:          getEnvDuration("MAX_BACKOFF", 30*time.Second),
		HTTPTimeout:         getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		DownloadTimeout:     getEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		OutputDir:           getEnv("OUTPUT_DIR", "datasheets"),
		ReportDir:           getEnv("REPORT_DIR", "reports"),
		Resume:              getEnvBool("RESUME", true),
		APIKeysPath:         getEnv("API_KEYS_PATH", "api_keys.json"),
		ManufacturerDirPath: getEnv("MANUFACTURER_DIR_PATH", ""),
		TokenURL:            getEnv("TOKEN_URL", "https://api.digikey.com/v1/oauth2/token"),
		SearchURL:           getEnv("SEARCH_URL", "https://api.digikey.com/products/v4/search/keyword"),
		ErrorPauseThreshold: getEnvInt("ERROR_PAUSE_THRESHOLD", 5),
		ErrorPause:          getEnvDuration("ERROR_PAUSE", 30*time.Second),
		ArchiveEnabled:      getEnvBool("ARCHIVE_ENABLED", false),
		ArchiveBackend:      getEnv("ARCHIVE_BACKEND", "fs"),
		ArchiveFSPath:       getEnv("ARCHIVE_FS_PATH", "archive"),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.SearchWorkers < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be at least 1, got %d", c.SearchWorkers)
	}
	if c.DownloadWorkers < 1 {
		return fmt.Errorf("DOWNLOAD_WORKERS must be at least 1, got %d", c.DownloadWorkers)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("REQUESTS_PER_MINUTE must be at least 1, got %d", c.RequestsPerMinute)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	if c.ArchiveEnabled {
		switch c.ArchiveBackend {
		case "fs":
			if c.ArchiveFSPath == "" {
				return fmt.Errorf("ARCHIVE_FS_PATH required for fs archive backend")
			}
		case "s3":
			if c.S3Bucket == "" {
				return fmt.Errorf("S3_BUCKET required for s3 archive backend")
			}
		default:
			return fmt.Errorf("unknown archive backend %q", c.ArchiveBackend)
		}
	}
	return nil
}
