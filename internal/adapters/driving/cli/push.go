package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agendo/calsync/internal/core/domain"
)

var pushCmd = &cobra.Command{
	Use:   "push <user-id>",
	Short: "Push local events to the remote calendar",
	Long: `Pushes the user's locally created events that have not reached the
remote calendar yet. Rows that arrived through sync are never pushed
back.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	if pusher == nil {
		return errors.New("push service not configured")
	}

	userID := args[0]
	pushed, err := pusher.PushLocalChanges(context.Background(), userID)
	if errors.Is(err, domain.ErrNotConnected) {
		return fmt.Errorf("user %s is not connected", userID)
	}
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	cmd.Printf("Pushed %d events.\n", pushed)
	return nil
}
