// Package cli implements the calsync command-line interface using cobra.
// Commands talk to the core services through the driving ports; the
// concrete wiring happens once in initServices before the root command
// runs.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/agendo/calsync/internal/adapters/driven/config/file"
	"github.com/agendo/calsync/internal/adapters/driven/oauth"
	"github.com/agendo/calsync/internal/adapters/driven/storage/sqlite"
	gcal "github.com/agendo/calsync/internal/connectors/google"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/core/services"
	"github.com/agendo/calsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by the commands. Wired in initServices; tests swap in
// mocks directly.
var (
	configStore *file.ConfigStore
	authFlow    driving.AuthFlow
	syncEngine  driving.SyncEngine
	pusher      driving.Pusher
	sweeper     driving.Sweeper
	dispatcher  driving.WebhookDispatcher
	agenda      driving.Agenda
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "calsync",
	Short: "Bidirectional Google Calendar synchronisation",
	Long: `calsync keeps a local event store and Google Calendar in sync.
Remote changes arrive through incremental sync and push notifications;
local changes are pushed back without echoing synced rows. Run "calsync
serve" to start the HTTP surface and the periodic sweep.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"enable verbose logging")
}

// Execute wires the services and runs the root command.
func Execute() error {
	if err := initServices(); err != nil {
		return fmt.Errorf("initialise services: %w", err)
	}
	return rootCmd.Execute()
}

// initServices builds the full service graph from config and storage.
func initServices() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configStore = cfg

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	connections := store.ConnectionStore()
	events := store.EventStore()

	clientID := cfg.GetString("google.client_id")
	clientSecret := cfg.GetString("google.client_secret")
	redirectURL := cfg.GetString("google.redirect_url")

	endpoint := oauth.NewEndpoint(clientID, clientSecret, redirectURL)
	api := gcal.NewClient()

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendarapi.CalendarScope},
		Endpoint:     googleoauth.Endpoint,
	}

	tokens := services.NewTokenManager(connections, endpoint)
	engine := services.NewSyncEngine(connections, events, api, tokens)
	auth := services.NewAuthService(connections, events, api, endpoint, tokens,
		engine, oauthConfig, cfg.GetString("server.webhook_url"))

	syncEngine = engine
	authFlow = auth
	pusher = services.NewPushService(events, api, tokens)
	sweeper = services.NewSweepService(connections, engine, auth)
	dispatcher = services.NewWebhookService(connections, engine)
	agenda = services.NewAgendaService(events)

	return nil
}
