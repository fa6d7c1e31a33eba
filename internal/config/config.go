// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every setting the application reads at startup.
type Config struct {
	// Authentication (optional in debug mode)
	AppUsername     string // login user name
	AppPasswordHash string // bcrypt hash of the login password
	SessionSecret   string // session cookie signing key

	// Server
	Port    string // API server port
	GinMode string // gin run mode (debug, release, test)

	// CORS
	CORSAllowedOrigins string // comma separated list of allowed origins

	// Upload limits
	MaxUploadBytes int64 // ceiling for one multipart request body
	RequirePDF     bool  // reject uploads whose bytes do not sniff as PDF

	// Worker process
	WorkerPath           string // path to the form worker executable
	WorkerTimeoutSeconds int    // hard deadline for one worker invocation
	WorkDir              string // base directory for staging, empty = os.TempDir()

	// Jobs / queue
	QueueRedisURL       string // Redis URL for asynq and the job record store
	AsyncThresholdBytes int64  // uploads above this size are queued instead of run inline
	AsyncThresholdPages int    // page count above which a job is queued (0 disables)
	JobExpireMinutes    int    // lifetime of queued job workspaces and records
	JobResultBaseURL    string // base URL for download links, empty = relative API path
}

// Load reads the configuration from environment variables.
// A .env.local file is honoured when present.
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 26214400), // 25MB
		RequirePDF:     getEnvAsBool("REQUIRE_PDF", true),

		WorkerPath:           getEnv("WORKER_PATH", "scripts/zim_xfa.py"),
		WorkerTimeoutSeconds: getEnvAsInt("WORKER_TIMEOUT_SECONDS", 120),
		WorkDir:              getEnv("WORK_DIR", ""),

		QueueRedisURL:       getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		AsyncThresholdBytes: getEnvAsInt64("ASYNC_THRESHOLD_BYTES", 10*1024*1024), // 10MB
		AsyncThresholdPages: getEnvAsInt("ASYNC_THRESHOLD_PAGES", 0),
		JobExpireMinutes:    getEnvAsInt("JOB_EXPIRE_MINUTES", 10),
		JobResultBaseURL:    getEnv("JOB_RESULT_BASE_URL", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate checks that required settings are present.
// Local development is lenient; release mode is strict.
func (c *Config) Validate() error {
	if c.WorkerPath == "" {
		return fmt.Errorf("WORKER_PATH must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.WorkerTimeoutSeconds <= 0 {
		return fmt.Errorf("WORKER_TIMEOUT_SECONDS must be positive")
	}

	if c.GinMode == "release" {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required in release mode")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	return nil
}

// AuthEnabled reports whether session authentication should be enforced.
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != "" && c.AppPasswordHash != "" && c.SessionSecret != ""
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
