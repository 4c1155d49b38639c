package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agendo/calsync/internal/core/domain"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <user-id>",
	Short: "Disconnect a user's Google Calendar",
	Long: `Cancels the user's webhook channel, revokes the stored token and
removes events that came from the remote calendar. Locally created
events are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisconnect,
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	if authFlow == nil {
		return errors.New("auth service not configured")
	}

	userID := args[0]
	err := authFlow.Disconnect(context.Background(), userID)
	if errors.Is(err, domain.ErrNotConnected) {
		return fmt.Errorf("user %s is not connected", userID)
	}
	if err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}

	cmd.Printf("Disconnected %s.\n", userID)
	return nil
}
