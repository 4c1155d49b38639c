package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Synchronise all connected users once",
	Long: `Runs one sweep pass over every connected user, the same pass the
serve command schedules periodically. Recently synced users are skipped
and expiring webhook channels are renewed.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if sweeper == nil {
		return errors.New("sweep service not configured")
	}

	result, err := sweeper.SweepAll(context.Background())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	cmd.Printf("Sweep complete: %d connections, %d synced, %d skipped, %d errors\n",
		result.Total, result.Synced, result.Skipped, result.Errors)
	return nil
}
