package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"snapvault/internal/credstore"
)

// statusCmd displays configuration and credential state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and authorization state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func runStatus() error {
	displayHeader()

	fmt.Println("Configuration:")
	fmt.Printf("  Database:      %s\n", orUnset(cfg.DBPath))
	fmt.Printf("  Scratch Dir:   %s\n", cfg.ScratchDir)
	fmt.Printf("  State Dir:     %s\n", cfg.StateDir)
	fmt.Printf("  Remote Folder: %s\n", cfg.FolderName)
	fmt.Printf("  Max Backups:   %d\n", cfg.MaxBackups)
	fmt.Printf("  Schedule:      daily at %02d:%02d %s\n", cfg.ScheduleHour, cfg.ScheduleMinute, cfg.Timezone)
	fmt.Printf("  Alerts File:   %s\n", cfg.AlertsFile)
	fmt.Println()

	store, err := openCredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get()
	if err != nil {
		return err
	}

	fmt.Println("Authorization:")
	switch rec.State {
	case credstore.StateActive:
		fmt.Printf("  State:         active (client %s)\n", rec.ClientID)
		fmt.Printf("  Authorized At: %s\n", rec.IssuedAt.Format("2006-01-02 15:04:05 MST"))
	case credstore.StatePending:
		fmt.Printf("  State:         pending (authorization started but never completed)\n")
		fmt.Printf("  Hint:          run 'snapvault authorize' to finish\n")
	default:
		fmt.Printf("  State:         not configured\n")
		fmt.Printf("  Hint:          run 'snapvault authorize' to set up\n")
	}

	fmt.Println()
	fmt.Println("System Information:")
	fmt.Printf("  OS:            %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go Version:    %s\n", runtime.Version())

	return nil
}

// displayHeader shows the application header
func displayHeader() {
	if cfg.NoColor {
		fmt.Println("==============================================================")
		fmt.Println(" SQLite Backup & Cloud-Sync Tool")
		fmt.Println("==============================================================")
	} else {
		fmt.Println("\033[1;34m==============================================================\033[0m")
		fmt.Println("\033[1;37m SQLite Backup & Cloud-Sync Tool\033[0m")
		fmt.Println("\033[1;34m==============================================================\033[0m")
	}

	fmt.Printf("Version: %s (built: %s, commit: %s)\n", cfg.Version, cfg.BuildTime, cfg.GitCommit)
	fmt.Println()
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
