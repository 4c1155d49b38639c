package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
)

// webhookDedupWindow suppresses sync triggers for a connection that synced
// this recently. Best-effort traffic reduction: merges are idempotent, so a
// duplicate sync that slips through is harmless.
const webhookDedupWindow = 30 * time.Second

// Ensure WebhookService implements the interface.
var _ driving.WebhookDispatcher = (*WebhookService)(nil)

// WebhookService turns provider push notifications into sync passes.
type WebhookService struct {
	connections driven.ConnectionStore
	engine      driving.SyncEngine

	now func() time.Time

	// detach runs the triggered sync outside the request lifecycle.
	detach func(fn func())
}

// NewWebhookService creates a webhook dispatcher over the given ports.
func NewWebhookService(connections driven.ConnectionStore, engine driving.SyncEngine) *WebhookService {
	return &WebhookService{
		connections: connections,
		engine:      engine,
		now:         time.Now,
		detach:      func(fn func()) { go fn() },
	}
}

// Receive handles one inbound notification.
//
// Only a validation failure is an error; every later outcome is an
// acknowledgement, because a non-success response teaches the provider to
// disable the channel. The triggered sync runs detached and its failure is
// logged, never surfaced to the sender.
func (w *WebhookService) Receive(ctx context.Context, n domain.Notification) (domain.DispatchOutcome, error) {
	if !n.Valid() {
		return domain.DispatchRejected, fmt.Errorf("%w: missing channel or resource id", domain.ErrInvalidNotification)
	}

	if n.IsHandshake() {
		logger.Debug("Webhook handshake for channel %s", n.ChannelID)
		return domain.DispatchHandshake, nil
	}

	conn, err := w.connections.GetByChannel(ctx, n.ChannelID, n.ResourceID)
	if errors.Is(err, domain.ErrNotFound) {
		// Ack anyway; the channel probably belongs to a torn-down
		// connection and will expire on its own.
		logger.Warn("No connection for channel %s / resource %s", n.ChannelID, n.ResourceID)
		return domain.DispatchUnknownChannel, nil
	}
	if err != nil {
		logger.Error("Channel lookup failed for %s: %v", n.ChannelID, err)
		return domain.DispatchUnknownChannel, nil
	}

	if conn.SyncedWithin(w.now(), webhookDedupWindow) {
		logger.Debug("Deduplicated notification for %s", conn.UserID)
		return domain.DispatchDeduplicated, nil
	}

	userID := conn.UserID
	w.detach(func() {
		if _, err := w.engine.PerformSync(context.Background(), userID); err != nil {
			logger.Error("Webhook-triggered sync failed for %s: %v", userID, err)
		}
	})
	return domain.DispatchTriggered, nil
}
