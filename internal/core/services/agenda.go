package services

import (
	"context"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/recurrence"
)

var _ driving.Agenda = (*AgendaService)(nil)

// AgendaService answers window queries over the local event store,
// expanding recurring masters into virtual occurrences on the fly.
// Occurrences are never persisted; only masters and plain rows are.
type AgendaService struct {
	events driven.EventStore
}

// NewAgendaService creates an agenda service over the event store.
func NewAgendaService(events driven.EventStore) *AgendaService {
	return &AgendaService{events: events}
}

// Occurrences loads the rows relevant to [from, to) and materialises them
// into concrete occurrences ordered by start.
func (a *AgendaService) Occurrences(ctx context.Context, userID string, from, to time.Time) ([]domain.Occurrence, error) {
	if userID == "" || !to.After(from) {
		return nil, fmt.Errorf("%w: occurrence window", domain.ErrInvalidInput)
	}

	rows, err := a.events.ListWindow(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	return recurrence.Materialise(rows, from, to), nil
}
