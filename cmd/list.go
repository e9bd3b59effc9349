package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"snapvault/internal/drive"
)

// listCmd lists the backups stored remotely
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		folderID, err := client.ResolveBackupFolder(cmd.Context())
		if err != nil {
			return err
		}

		entries, err := client.ListBackups(cmd.Context(), folderID)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No remote backups found.")
			return nil
		}

		fmt.Printf("%-34s %-22s %10s  %s\n", "ID", "CREATED", "SIZE", "NAME")
		for _, e := range entries {
			fmt.Printf("%-34s %-22s %10s  %s\n",
				e.ID,
				e.CreatedTime.Format("2006-01-02 15:04:05Z"),
				drive.FormatSize(e.SizeBytes),
				e.Name)
		}
		return nil
	},
}
