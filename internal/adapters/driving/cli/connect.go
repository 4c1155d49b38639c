package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var connectOrigin string

var connectCmd = &cobra.Command{
	Use:   "connect <user-id>",
	Short: "Print the Google consent URL for a user",
	Long: `Builds the OAuth authorize URL that connects the user's Google
Calendar. Open it in a browser; the callback is handled by the running
server.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectOrigin, "origin", "",
		"frontend URL to redirect back to after the callback")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	if authFlow == nil {
		return errors.New("auth service not configured")
	}

	cmd.Println(authFlow.AuthorizeURL(args[0], connectOrigin))
	return nil
}
