package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		DBPath:         "/data/live.db",
		MaxBackups:     DefaultMaxBackups,
		FolderName:     DefaultFolderName,
		ScheduleHour:   3,
		ScheduleMinute: 30,
		Timezone:       "UTC",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing db path", func(c *Config) { c.DBPath = "" }, "db"},
		{"zero max backups", func(c *Config) { c.MaxBackups = 0 }, "max-backups"},
		{"negative max backups", func(c *Config) { c.MaxBackups = -3 }, "max-backups"},
		{"hour too large", func(c *Config) { c.ScheduleHour = 24 }, "schedule-hour"},
		{"negative hour", func(c *Config) { c.ScheduleHour = -1 }, "schedule-hour"},
		{"minute too large", func(c *Config) { c.ScheduleMinute = 60 }, "schedule-minute"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cerr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, cerr.Field)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = "Europe/Berlin"
	if got := cfg.Location().String(); got != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %q", got)
	}
}
