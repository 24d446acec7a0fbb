package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathsConfig
	Jobs     JobsConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// ServerConfig holds HTTP server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	MaxUploadBytes int64
}

// PathsConfig holds upload/output directory configuration
type PathsConfig struct {
	UploadDir string
	OutputDir string
	RulesPath string
}

// JobsConfig holds job lifecycle configuration
type JobsConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	TickInterval      time.Duration
	StuckThreshold    time.Duration
}

// EngineConfig holds processing-engine subprocess configuration
type EngineConfig struct {
	ProcessCmd       string
	DashboardCmd     string
	ProcessTimeout   time.Duration
	DashboardTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("DB_URL", "watertrack.db"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			MaxUploadBytes: getEnvAsInt64("MAX_FILE_SIZE_MB", 50) * 1024 * 1024,
		},
		Paths: PathsConfig{
			UploadDir: getEnv("UPLOAD_FOLDER", "uploads"),
			OutputDir: getEnv("OUTPUT_FOLDER", "outputs"),
			RulesPath: getEnv("DETECTION_RULES_FILE", "dataset_detection_rules.json"),
		},
		Jobs: JobsConfig{
			MaxRetries:        getEnvAsInt("JOB_MAX_RETRIES", 3),
			BaseDelay:         getEnvAsDuration("JOB_RETRY_DELAY", 30*time.Second),
			BackoffMultiplier: getEnvAsFloat64("JOB_BACKOFF_MULTIPLIER", 2.0),
			MaxDelay:          getEnvAsDuration("JOB_MAX_RETRY_DELAY", 5*time.Minute),
			TickInterval:      getEnvAsDuration("JOB_TICK_INTERVAL", 5*time.Second),
			StuckThreshold:    getEnvAsDuration("JOB_STUCK_THRESHOLD", 2*time.Hour),
		},
		Engine: EngineConfig{
			ProcessCmd:       getEnv("PROCESS_CMD", "process_data"),
			DashboardCmd:     getEnv("DASHBOARD_CMD", "generate_dashboard"),
			ProcessTimeout:   getEnvAsDuration("PROCESS_TIMEOUT", time.Hour),
			DashboardTimeout: getEnvAsDuration("DASHBOARD_TIMEOUT", 5*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Jobs.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "JOB_MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	if c.Jobs.BackoffMultiplier <= 1 {
		return NewAppError("CONFIG_ERROR", "JOB_BACKOFF_MULTIPLIER must be > 1", ErrInvalidInput)
	}
	return nil
}
