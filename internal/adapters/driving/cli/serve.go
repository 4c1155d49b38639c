package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/agendo/calsync/internal/adapters/driving/httpapi"
	"github.com/agendo/calsync/internal/logger"
)

const (
	defaultListenAddr    = ":8080"
	defaultSweepSchedule = "*/15 * * * *"
	shutdownTimeout      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and periodic sweep",
	Long: `Starts the HTTP surface (OAuth flow, webhook receiver, manual sync)
and a cron-driven sweep that synchronises every connected user on a
schedule. Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if authFlow == nil || syncEngine == nil || dispatcher == nil || sweeper == nil || agenda == nil {
		return errors.New("services not configured")
	}

	listenAddr := defaultListenAddr
	schedule := defaultSweepSchedule
	origin := ""
	if configStore != nil {
		if v := configStore.GetString("server.listen"); v != "" {
			listenAddr = v
		}
		if v := configStore.GetString("sync.schedule"); v != "" {
			schedule = v
		}
		origin = configStore.GetString("app.origin")
	}

	server := httpapi.NewServer(authFlow, syncEngine, agenda, dispatcher, origin)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		result, sweepErr := sweeper.SweepAll(context.Background())
		if sweepErr != nil {
			logger.Error("Scheduled sweep failed: %v", sweepErr)
			return
		}
		logger.Info("Sweep complete: %d synced, %d skipped, %d errors",
			result.Synced, result.Skipped, result.Errors)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	cmd.Printf("Listening on %s (sweep schedule %q)\n", listenAddr, schedule)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		cmd.Printf("Received %s, shutting down...\n", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
