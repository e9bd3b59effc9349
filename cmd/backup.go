package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"snapvault/internal/drive"
	"snapvault/internal/snapshot"
)

// backupCmd triggers one manual backup cycle
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and upload a backup now",
	Long: `Run one full backup cycle immediately: snapshot the database, upload
the snapshot to the remote backup folder, enforce retention and remove the
local temporary file.

Examples:
  # Back up the configured database
  snapvault backup

  # Back up a specific database file
  snapvault backup --db /srv/app/data.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManualBackup(cmd)
	},
}

func runManualBackup(cmd *cobra.Command) error {
	sched, store, sink, err := newScheduler()
	if err != nil {
		return err
	}
	defer store.Close()
	defer sink.Close()

	if err := sched.RunOnce(cmd.Context()); err != nil {
		switch {
		case errors.Is(err, drive.ErrNotAuthorized):
			return fmt.Errorf("remote storage is not authorized yet; run 'snapvault authorize' first")
		case errors.Is(err, snapshot.ErrSourceMissing),
			errors.Is(err, snapshot.ErrSourceEmpty):
			return fmt.Errorf("source database problem: %w", err)
		case errors.Is(err, snapshot.ErrIntegrityCheck):
			return fmt.Errorf("the source database reports corruption, refusing to back it up: %w", err)
		default:
			return err
		}
	}

	fmt.Println("Backup complete.")
	saveLocalConfig()
	return nil
}
