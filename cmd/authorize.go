package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"snapvault/internal/credstore"
	"snapvault/internal/tui"
	"snapvault/internal/wizard"
)

var resetCredentials bool

// authorizeCmd runs the interactive authorization wizard
var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize access to the Google Drive account",
	Long: `Walk through the one-time Google Drive authorization.

The wizard guides you through creating OAuth application credentials in the
Google Cloud Console, then exchanges a one-time authorization code for a
long-lived refresh token. The token is stored locally; re-running the wizard
never loses a working authorization unless a new exchange succeeds.

Examples:
  snapvault authorize
  snapvault authorize --reset   # forget the stored credentials first`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuthorize()
	},
}

func init() {
	authorizeCmd.Flags().BoolVar(&resetCredentials, "reset", false, "Clear stored credentials before starting")
}

func runAuthorize() error {
	store, err := openCredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if resetCredentials {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Stored credentials cleared.")
	}

	rec, err := store.Get()
	if err != nil {
		return err
	}
	if rec.State == credstore.StateActive {
		fmt.Println("Remote storage is already authorized. Completing the wizard")
		fmt.Println("again will replace the stored authorization.")
	}

	wiz := wizard.New(store, log)
	model := tui.NewWizardModel(wiz, log)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}

	final, err := store.Get()
	if err != nil {
		return err
	}
	if final.State == credstore.StateActive {
		log.Info("Authorization stored", "client_id", final.ClientID)
	}
	return nil
}
