package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snapvault/internal/alert"
	"snapvault/internal/config"
	"snapvault/internal/credstore"
	"snapvault/internal/drive"
	"snapvault/internal/logger"
	"snapvault/internal/scheduler"
	"snapvault/internal/snapshot"
)

var (
	cfg *config.Config
	log logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapvault",
	Short: "SQLite backup and cloud-sync tool",
	Long: `snapvault snapshots a live SQLite database and keeps a bounded set of
backups in a Google Drive folder.

Features:
- Consistent snapshots of a WAL-mode database under concurrent writers
- One-time interactive Google Drive authorization (OAuth2)
- Daily unattended schedule plus on-demand backups
- Remote retention bounded to a fixed number of snapshots
- Restore of a named remote snapshot

For help with specific commands, use: snapvault [command] --help`,
	Version: "",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return nil
		}

		// Store which flags were explicitly set by user
		flagsSet := make(map[string]bool)
		cmd.Flags().Visit(func(f *pflag.Flag) {
			flagsSet[f.Name] = true
		})

		// Load local config if not disabled; flags keep priority
		if !cfg.NoLoadConfig {
			localCfg, err := config.LoadLocalConfig()
			if err != nil {
				log.Warn("Failed to load local config", "error", err)
			} else if localCfg != nil {
				savedDBPath := cfg.DBPath
				savedScratchDir := cfg.ScratchDir
				savedFolder := cfg.FolderName
				savedMaxBackups := cfg.MaxBackups
				savedHour := cfg.ScheduleHour
				savedMinute := cfg.ScheduleMinute
				savedTimezone := cfg.Timezone

				config.ApplyLocalConfig(cfg, localCfg)
				log.Debug("Loaded configuration from " + config.ConfigFileName)

				if flagsSet["db"] {
					cfg.DBPath = savedDBPath
				}
				if flagsSet["scratch-dir"] {
					cfg.ScratchDir = savedScratchDir
				}
				if flagsSet["folder"] {
					cfg.FolderName = savedFolder
				}
				if flagsSet["max-backups"] {
					cfg.MaxBackups = savedMaxBackups
				}
				if flagsSet["schedule-hour"] {
					cfg.ScheduleHour = savedHour
				}
				if flagsSet["schedule-minute"] {
					cfg.ScheduleMinute = savedMinute
				}
				if flagsSet["timezone"] {
					cfg.Timezone = savedTimezone
				}
			}
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context, c *config.Config, l logger.Logger) error {
	cfg = c
	log = l

	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)",
		cfg.Version, cfg.BuildTime, cfg.GitCommit)

	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the live SQLite database")
	rootCmd.PersistentFlags().StringVar(&cfg.ScratchDir, "scratch-dir", cfg.ScratchDir, "Scratch directory for temporary snapshots")
	rootCmd.PersistentFlags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory holding settings and credentials")
	rootCmd.PersistentFlags().StringVar(&cfg.FolderName, "folder", cfg.FolderName, "Remote backup folder name")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxBackups, "max-backups", cfg.MaxBackups, "Number of remote backups to keep")
	rootCmd.PersistentFlags().IntVar(&cfg.ScheduleHour, "schedule-hour", cfg.ScheduleHour, "Hour of the daily backup (0-23)")
	rootCmd.PersistentFlags().IntVar(&cfg.ScheduleMinute, "schedule-minute", cfg.ScheduleMinute, "Minute of the daily backup (0-59)")
	rootCmd.PersistentFlags().StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA timezone of the schedule")
	rootCmd.PersistentFlags().StringVar(&cfg.AlertsFile, "alerts-file", cfg.AlertsFile, "File receiving unattended failure alerts")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoSaveConfig, "no-save-config", false, "Don't save configuration after successful operations")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoLoadConfig, "no-config", false, "Don't load configuration from "+config.ConfigFileName)

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Register subcommands
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(restoreCmd)
}

// openCredStore opens the settings store under the configured state dir.
func openCredStore() (*credstore.Store, error) {
	store, err := credstore.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

// newRemoteClient builds an authenticated remote client from the stored
// credential. Fails with drive.ErrNotAuthorized until the wizard completed.
func newRemoteClient(ctx context.Context, store *credstore.Store) (*drive.Client, error) {
	rec, err := store.Get()
	if err != nil {
		return nil, err
	}
	return drive.NewClient(ctx, rec, cfg.FolderName, cfg.MaxBackups, log)
}

// newScheduler wires the full backup pipeline. The caller owns the returned
// store and sink and must close them.
func newScheduler() (*scheduler.Scheduler, *credstore.Store, *alert.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	store, err := openCredStore()
	if err != nil {
		return nil, nil, nil, err
	}

	sink, err := alert.NewSink(cfg.AlertsFile)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("open alerts file: %w", err)
	}

	sched := scheduler.New(scheduler.Options{
		DBPath:     cfg.DBPath,
		Hour:       cfg.ScheduleHour,
		Minute:     cfg.ScheduleMinute,
		Location:   cfg.Location(),
		MaxBackups: cfg.MaxBackups,
		Engine:     snapshot.NewEngine(cfg.ScratchDir, log),
		NewClient: func(ctx context.Context) (scheduler.RemoteClient, error) {
			return newRemoteClient(ctx, store)
		},
		Creds: store,
		Sink:  sink,
		Log:   log,
	})

	return sched, store, sink, nil
}

// saveLocalConfig persists the effective configuration for future runs.
func saveLocalConfig() {
	if cfg.NoSaveConfig {
		return
	}
	if err := config.SaveLocalConfig(config.ConfigFromConfig(cfg)); err != nil {
		log.Warn("Failed to save local config", "error", err)
	}
}
