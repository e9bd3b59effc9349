package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"snapvault/internal/drive"
	"snapvault/internal/snapshot"
)

var restoreConfirmed bool

// restoreCmd replaces the live database with a named remote snapshot
var restoreCmd = &cobra.Command{
	Use:   "restore <remote-id>",
	Short: "Restore a remote snapshot over the live database",
	Long: `Download one remote snapshot by its id (see 'snapvault list'), verify
its integrity, and replace the live database with it. The previous database
file is kept next to it with a .bak suffix.

The application owning the database must be stopped during a restore.

Examples:
  snapvault restore 1aBcD-xyz --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRestore(cmd, args[0])
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreConfirmed, "yes", false, "Confirm replacing the live database")
}

func runRestore(cmd *cobra.Command, remoteID string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !restoreConfirmed {
		return fmt.Errorf("restore replaces %s; re-run with --yes to confirm", cfg.DBPath)
	}

	store, err := openCredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := newRemoteClient(cmd.Context(), store)
	if err != nil {
		if errors.Is(err, drive.ErrNotAuthorized) {
			return fmt.Errorf("remote storage is not authorized yet; run 'snapvault authorize' first")
		}
		return err
	}

	if err := os.MkdirAll(cfg.ScratchDir, 0700); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	tmpPath := filepath.Join(cfg.ScratchDir, "restore-"+filepath.Base(remoteID)+".db")
	defer os.Remove(tmpPath)

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := client.Download(cmd.Context(), remoteID, tmpFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("write downloaded snapshot: %w", err)
	}

	// Never replace the live database with a damaged download.
	if err := snapshot.IntegrityCheck(cmd.Context(), tmpPath); err != nil {
		return fmt.Errorf("downloaded snapshot is not usable: %w", err)
	}

	if err := installRestored(tmpPath, cfg.DBPath); err != nil {
		return err
	}

	fmt.Printf("Restored %s over %s (previous file kept as %s.bak)\n", remoteID, cfg.DBPath, cfg.DBPath)
	return nil
}

// installRestored stages the verified download next to the live database and
// renames it into place, keeping the previous file with a .bak suffix. The
// live path always holds either the old or the restored database, never
// neither.
func installRestored(downloadPath, dbPath string) error {
	stagePath := dbPath + ".restore"
	if err := copyFile(downloadPath, stagePath); err != nil {
		return fmt.Errorf("stage restored database: %w", err)
	}
	defer os.Remove(stagePath)

	backupPath := dbPath + ".bak"
	hadPrevious := false
	if _, err := os.Stat(dbPath); err == nil {
		hadPrevious = true
		if err := os.Rename(dbPath, backupPath); err != nil {
			return fmt.Errorf("set aside current database: %w", err)
		}
	}

	if err := os.Rename(stagePath, dbPath); err != nil {
		if hadPrevious {
			os.Rename(backupPath, dbPath)
		}
		return fmt.Errorf("replace database: %w", err)
	}

	// Stale WAL/SHM files would shadow the restored content.
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
