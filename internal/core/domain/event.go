package domain

import "time"

// Event is a local calendar event row.
//
// Rows are written either by the sync engine (remote origin, SyncOrigin set)
// or by direct user action (local origin, eligible for one push to the
// remote). A recurring event row is the master definition; concrete
// occurrences are virtual and produced by the recurrence expander.
type Event struct {
	// ID is the local row identifier.
	ID string

	// UserID identifies the owning user.
	UserID string

	// ExternalID is the provider's event id. Empty means the event has never
	// been pushed to the remote calendar.
	ExternalID string

	// Title is the event summary.
	Title string

	// Description is the free-form event body.
	Description string

	// StartsAt and EndsAt are absolute instants. Their UTC offset (the
	// anchor's own offset) is significant for recurrence arithmetic.
	StartsAt time.Time
	EndsAt   time.Time

	// Timezone is the provider-reported zone name for the start time.
	Timezone string

	// Recurring marks a recurrence master. When true, RRule is non-empty.
	Recurring bool

	// RRule is the normalised recurrence rule string, empty when not
	// recurring.
	RRule string

	// RepeatsUntil bounds the recurrence, nil for unbounded rules.
	RepeatsUntil *time.Time

	// ExDates are occurrence dates excluded from the recurrence, interpreted
	// as calendar dates in the anchor's offset.
	ExDates []time.Time

	// NextOccurrence is a hint for the next concrete occurrence after the
	// last write, nil when none could be computed.
	NextOccurrence *time.Time

	// CreatorEmail is the remote creator's address, when known.
	CreatorEmail string

	// Active is false for soft-deleted rows.
	Active bool

	// SyncOrigin marks a write as coming from the remote-pull path. It is
	// transient: present on the write call so the local change trigger can
	// skip re-pushing the row, never persisted as row state.
	SyncOrigin bool

	// CreatedAt is when the row was inserted.
	CreatedAt time.Time
	// UpdatedAt is when the row was last written.
	UpdatedAt time.Time
}

// Pushed reports whether the event already exists on the remote calendar.
func (e *Event) Pushed() bool {
	return e.ExternalID != ""
}

// Duration returns the event length. A zero or negative span falls back to
// fifteen minutes, matching the expander's treatment of open-ended events.
func (e *Event) Duration() time.Duration {
	d := e.EndsAt.Sub(e.StartsAt)
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Occurrence is one concrete time instance of a recurring event within a
// window. It is virtual: never persisted unless explicitly materialised.
type Occurrence struct {
	// ParentID references the recurrence master's local row.
	ParentID string

	// Event carries the parent's fields by copy with concrete start/end
	// instants substituted in.
	Event Event
}
