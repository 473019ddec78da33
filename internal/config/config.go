// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/pulse/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	CORSAllowedOrigins []string

	// Event bus
	EventHistorySize int
	HandlerTimeout   time.Duration

	// Engines
	SuggestionTTL   time.Duration
	RiskFreeRate    float64 // percent
	AdminUserID     string
	NotifyPerMinute int

	// Scheduled jobs (cron expressions with seconds field)
	CleanupSchedule     string
	RiskRefreshSchedule string
	MaintenanceSchedule string

	Backup *BackupConfig
}

// BackupConfig holds settings for store snapshots uploaded to S3-compatible storage
type BackupConfig struct {
	Enabled         bool
	Schedule        string
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Retention       int // number of remote snapshots to keep
}

// Configured reports whether the remote target has enough settings to upload.
func (b *BackupConfig) Configured() bool {
	return b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PULSE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		CORSAllowedOrigins:  utils.ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		EventHistorySize:    getEnvAsInt("EVENT_HISTORY_SIZE", 1000),
		HandlerTimeout:      getEnvAsDuration("HANDLER_TIMEOUT", 30*time.Second),
		SuggestionTTL:       getEnvAsDuration("SUGGESTION_TTL", 7*24*time.Hour),
		RiskFreeRate:        getEnvAsFloat("RISK_FREE_RATE", 2.0),
		AdminUserID:         getEnv("ADMIN_USER_ID", ""),
		NotifyPerMinute:     getEnvAsInt("NOTIFICATIONS_PER_MINUTE", 30),
		CleanupSchedule:     getEnv("CLEANUP_SCHEDULE", "@hourly"),
		RiskRefreshSchedule: getEnv("RISK_REFRESH_SCHEDULE", "0 30 6 * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 2 * * *"),
		Backup:              loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.EventHistorySize <= 0 {
		return fmt.Errorf("EVENT_HISTORY_SIZE must be positive, got %d", c.EventHistorySize)
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("HANDLER_TIMEOUT must be positive, got %s", c.HandlerTimeout)
	}
	if c.SuggestionTTL <= 0 {
		return fmt.Errorf("SUGGESTION_TTL must be positive, got %s", c.SuggestionTTL)
	}
	if c.NotifyPerMinute < 0 {
		return fmt.Errorf("NOTIFICATIONS_PER_MINUTE must not be negative, got %d", c.NotifyPerMinute)
	}
	if c.Backup != nil && c.Backup.Enabled && !c.Backup.Configured() {
		return fmt.Errorf("backup enabled but R2_BUCKET, R2_ACCESS_KEY_ID or R2_SECRET_ACCESS_KEY is missing")
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		Endpoint:        getEnv("R2_ENDPOINT", ""),
		Bucket:          getEnv("R2_BUCKET", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		Region:          getEnv("R2_REGION", "auto"),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 14),
	}
}
