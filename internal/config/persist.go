package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const ConfigFileName = ".snapvault.conf"

// LocalConfig represents a saved configuration in the current directory
type LocalConfig struct {
	// Source settings
	DBPath     string
	ScratchDir string

	// Remote settings
	FolderName string
	MaxBackups int

	// Schedule settings
	ScheduleHour   int
	ScheduleMinute int
	Timezone       string
}

// LoadLocalConfig loads configuration from .snapvault.conf in current directory
func LoadLocalConfig() (*LocalConfig, error) {
	configPath := filepath.Join(".", ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No config file, not an error
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &LocalConfig{ScheduleHour: -1, ScheduleMinute: -1}
	currentSection := ""

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Section headers
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.Trim(line, "[]")
			continue
		}

		// Key-value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch currentSection {
		case "source":
			switch key {
			case "db_path":
				cfg.DBPath = value
			case "scratch_dir":
				cfg.ScratchDir = value
			}
		case "remote":
			switch key {
			case "folder":
				cfg.FolderName = value
			case "max_backups":
				if n, err := strconv.Atoi(value); err == nil {
					cfg.MaxBackups = n
				}
			}
		case "schedule":
			switch key {
			case "hour":
				if h, err := strconv.Atoi(value); err == nil {
					cfg.ScheduleHour = h
				}
			case "minute":
				if m, err := strconv.Atoi(value); err == nil {
					cfg.ScheduleMinute = m
				}
			case "timezone":
				cfg.Timezone = value
			}
		}
	}

	return cfg, nil
}

// SaveLocalConfig saves configuration to .snapvault.conf in current directory
func SaveLocalConfig(cfg *LocalConfig) error {
	var sb strings.Builder

	sb.WriteString("# snapvault configuration\n")
	sb.WriteString("# This file is auto-generated. Edit with care.\n\n")

	sb.WriteString("[source]\n")
	if cfg.DBPath != "" {
		sb.WriteString(fmt.Sprintf("db_path = %s\n", cfg.DBPath))
	}
	if cfg.ScratchDir != "" {
		sb.WriteString(fmt.Sprintf("scratch_dir = %s\n", cfg.ScratchDir))
	}
	sb.WriteString("\n")

	sb.WriteString("[remote]\n")
	if cfg.FolderName != "" {
		sb.WriteString(fmt.Sprintf("folder = %s\n", cfg.FolderName))
	}
	if cfg.MaxBackups != 0 {
		sb.WriteString(fmt.Sprintf("max_backups = %d\n", cfg.MaxBackups))
	}
	sb.WriteString("\n")

	sb.WriteString("[schedule]\n")
	if cfg.ScheduleHour >= 0 {
		sb.WriteString(fmt.Sprintf("hour = %d\n", cfg.ScheduleHour))
	}
	if cfg.ScheduleMinute >= 0 {
		sb.WriteString(fmt.Sprintf("minute = %d\n", cfg.ScheduleMinute))
	}
	if cfg.Timezone != "" {
		sb.WriteString(fmt.Sprintf("timezone = %s\n", cfg.Timezone))
	}

	configPath := filepath.Join(".", ConfigFileName)
	if err := os.WriteFile(configPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyLocalConfig applies loaded local config to the main config if values are not already set
func ApplyLocalConfig(cfg *Config, local *LocalConfig) {
	if local == nil {
		return
	}

	if local.DBPath != "" {
		cfg.DBPath = local.DBPath
	}
	if local.ScratchDir != "" {
		cfg.ScratchDir = local.ScratchDir
	}
	if cfg.FolderName == DefaultFolderName && local.FolderName != "" {
		cfg.FolderName = local.FolderName
	}
	if cfg.MaxBackups == DefaultMaxBackups && local.MaxBackups != 0 {
		cfg.MaxBackups = local.MaxBackups
	}
	if local.ScheduleHour >= 0 {
		cfg.ScheduleHour = local.ScheduleHour
	}
	if local.ScheduleMinute >= 0 {
		cfg.ScheduleMinute = local.ScheduleMinute
	}
	if cfg.Timezone == "UTC" && local.Timezone != "" {
		cfg.Timezone = local.Timezone
	}
}

// ConfigFromConfig creates a LocalConfig from a Config
func ConfigFromConfig(cfg *Config) *LocalConfig {
	return &LocalConfig{
		DBPath:         cfg.DBPath,
		ScratchDir:     cfg.ScratchDir,
		FolderName:     cfg.FolderName,
		MaxBackups:     cfg.MaxBackups,
		ScheduleHour:   cfg.ScheduleHour,
		ScheduleMinute: cfg.ScheduleMinute,
		Timezone:       cfg.Timezone,
	}
}
