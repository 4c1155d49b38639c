package services

import (
	"context"
	"sync"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
)

const (
	// sweepBatchSize bounds how many connections sync concurrently.
	sweepBatchSize = 5

	// sweepBatchDelay spaces batches out to stay under provider rate limits.
	sweepBatchDelay = 2 * time.Second

	// sweepSkipWindow passes over connections that synced this recently.
	sweepSkipWindow = 10 * time.Minute

	// webhookRenewalWindow renews channels expiring this soon.
	webhookRenewalWindow = 24 * time.Hour
)

// Ensure SweepService implements the interface.
var _ driving.Sweeper = (*SweepService)(nil)

// SweepService runs the scheduled pass over all connected users: sync each
// one, renew push channels nearing expiry, and clear registrations that
// already lapsed.
type SweepService struct {
	connections driven.ConnectionStore
	engine      driving.SyncEngine
	auth        driving.AuthFlow

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSweepService creates a sweeper over the given ports.
func NewSweepService(connections driven.ConnectionStore, engine driving.SyncEngine, auth driving.AuthFlow) *SweepService {
	return &SweepService{
		connections: connections,
		engine:      engine,
		auth:        auth,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// SweepAll syncs every connected connection in batches. One connection's
// failure is counted and never aborts the sweep for the others.
func (s *SweepService) SweepAll(ctx context.Context) (*domain.SweepResult, error) {
	if cleared, err := s.connections.ClearExpiredWebhooks(ctx, s.now()); err != nil {
		logger.Warn("Failed to clear expired webhooks: %v", err)
	} else if cleared > 0 {
		logger.Info("Cleared %d expired webhook registrations", cleared)
	}

	conns, err := s.connections.ListConnected(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.SweepResult{Total: len(conns)}
	var mu sync.Mutex

	for start := 0; start < len(conns); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(conns) {
			end = len(conns)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			conn := conns[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome := s.sweepOne(ctx, &conn)
				mu.Lock()
				switch outcome {
				case sweepSynced:
					result.Synced++
				case sweepSkipped:
					result.Skipped++
				case sweepFailed:
					result.Errors++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if end < len(conns) {
			s.sleep(sweepBatchDelay)
		}
	}

	logger.Info("Sweep complete: %d synced, %d skipped, %d errors of %d",
		result.Synced, result.Skipped, result.Errors, result.Total)
	return result, nil
}

type sweepOutcome int

const (
	sweepSynced sweepOutcome = iota
	sweepSkipped
	sweepFailed
)

func (s *SweepService) sweepOne(ctx context.Context, conn *domain.Connection) sweepOutcome {
	now := s.now()
	if conn.SyncedWithin(now, sweepSkipWindow) {
		return sweepSkipped
	}

	if conn.Webhook != nil && conn.Webhook.ExpiresWithin(now, webhookRenewalWindow) {
		logger.Info("Renewing webhook channel for %s", conn.UserID)
		if err := s.auth.CancelWebhook(ctx, conn.UserID); err != nil {
			logger.Warn("Failed to cancel expiring channel for %s: %v", conn.UserID, err)
		}
		if err := s.auth.RegisterWebhook(ctx, conn.UserID); err != nil {
			logger.Warn("Failed to renew webhook for %s: %v", conn.UserID, err)
		}
	}

	if _, err := s.engine.PerformSync(ctx, conn.UserID); err != nil {
		logger.Error("Sweep sync failed for %s: %v", conn.UserID, err)
		return sweepFailed
	}
	return sweepSynced
}
