package driving

import (
	"context"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
)

// Agenda reads the materialised local calendar.
type Agenda interface {
	// Occurrences returns the concrete occurrences intersecting [from, to):
	// plain events pass through and recurring masters are expanded into
	// virtual occurrences, ordered by start.
	Occurrences(ctx context.Context, userID string, from, to time.Time) ([]domain.Occurrence, error)
}
