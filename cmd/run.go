package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runCmd starts the unattended daily schedule
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily backup schedule in the foreground",
	Long: `Start the unattended scheduler and block until interrupted.

One backup cycle fires daily at the configured time. Cycle failures are
written to the alerts file and never stop the schedule. If authorization
was never completed, scheduled cycles are skipped quietly.

Examples:
  snapvault run
  snapvault run --schedule-hour 2 --schedule-minute 15 --timezone Europe/Berlin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, store, sink, err := newScheduler()
		if err != nil {
			return err
		}
		defer store.Close()
		defer sink.Close()

		handle := sched.Start(cmd.Context())
		fmt.Printf("Scheduler running (%s). Press Ctrl+C to stop.\n", sched.Status().Schedule)

		<-cmd.Context().Done()
		handle.Stop()
		log.Info("Scheduler stopped")
		return nil
	},
}
