package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration options
type Config struct {
	// Version information
	Version   string
	BuildTime string
	GitCommit string

	// Source database
	DBPath string

	// Snapshot options
	ScratchDir string

	// Settings/credential storage
	StateDir string

	// Remote storage
	FolderName string
	MaxBackups int

	// Schedule
	ScheduleHour   int
	ScheduleMinute int
	Timezone       string

	// Output options
	NoColor    bool
	Debug      bool
	LogLevel   string
	LogFormat  string
	AlertsFile string

	// Local config file handling
	NoSaveConfig bool
	NoLoadConfig bool
}

// DefaultMaxBackups is the number of remote snapshots kept by retention.
const DefaultMaxBackups = 5

// DefaultFolderName is the well-known remote backup folder name.
const DefaultFolderName = "snapvault"

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		DBPath:     getEnvString("SNAPVAULT_DB", ""),
		ScratchDir: getEnvString("SNAPVAULT_SCRATCH_DIR", defaultScratchDir()),
		StateDir:   getEnvString("SNAPVAULT_STATE_DIR", defaultStateDir()),

		FolderName: getEnvString("SNAPVAULT_FOLDER", DefaultFolderName),
		MaxBackups: getEnvInt("SNAPVAULT_MAX_BACKUPS", DefaultMaxBackups),

		ScheduleHour:   getEnvInt("SNAPVAULT_SCHEDULE_HOUR", 3),
		ScheduleMinute: getEnvInt("SNAPVAULT_SCHEDULE_MINUTE", 30),
		Timezone:       getEnvString("SNAPVAULT_TZ", "UTC"),

		NoColor:    getEnvBool("NO_COLOR", false),
		Debug:      getEnvBool("DEBUG", false),
		LogLevel:   getEnvString("LOG_LEVEL", "info"),
		LogFormat:  getEnvString("LOG_FORMAT", "text"),
		AlertsFile: getEnvString("SNAPVAULT_ALERTS_FILE", defaultAlertsFile()),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ConfigError{Field: "db", Value: "", Message: "source database path is required"}
	}
	if c.MaxBackups < 1 {
		return &ConfigError{Field: "max-backups", Value: strconv.Itoa(c.MaxBackups), Message: "must be at least 1"}
	}
	if c.ScheduleHour < 0 || c.ScheduleHour > 23 {
		return &ConfigError{Field: "schedule-hour", Value: strconv.Itoa(c.ScheduleHour), Message: "must be between 0-23"}
	}
	if c.ScheduleMinute < 0 || c.ScheduleMinute > 59 {
		return &ConfigError{Field: "schedule-minute", Value: strconv.Itoa(c.ScheduleMinute), Message: "must be between 0-59"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &ConfigError{Field: "timezone", Value: c.Timezone, Message: "unknown IANA timezone"}
	}
	return nil
}

// Location returns the schedule timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "' with value '" + e.Value + "': " + e.Message
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func defaultScratchDir() string {
	return filepath.Join(os.TempDir(), "snapvault")
}

func defaultStateDir() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		return filepath.Join(homeDir, ".snapvault")
	}
	return filepath.Join(os.TempDir(), "snapvault-state")
}

func defaultAlertsFile() string {
	return filepath.Join(defaultStateDir(), "alerts.log")
}
