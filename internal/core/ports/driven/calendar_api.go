package driven

import (
	"context"
	"time"
)

// RemoteEventTime is one endpoint of a remote event's span. Timed events
// carry DateTime (RFC 3339 with the event's own UTC offset); all-day events
// carry only Date.
type RemoteEventTime struct {
	// DateTime is the RFC 3339 instant, empty for all-day events.
	DateTime string
	// Date is the calendar date for all-day events, empty otherwise.
	Date string
	// TimeZone is the provider's zone name for this endpoint.
	TimeZone string
}

// Timed reports whether this endpoint carries a concrete instant.
func (t RemoteEventTime) Timed() bool {
	return t.DateTime != ""
}

// RemoteEvent is a calendar item as returned by the provider.
type RemoteEvent struct {
	// ID is the provider's event id.
	ID string
	// Status is the provider lifecycle state; "cancelled" marks deletion.
	Status string
	// Summary is the event title.
	Summary string
	// Description is the event body.
	Description string
	// Start and End span the event.
	Start RemoteEventTime
	End   RemoteEventTime
	// Recurrence holds the provider's native rule lines on a recurrence
	// master, nil otherwise.
	Recurrence []string
	// RecurringEventID references the master when this item is an expanded
	// instance of a recurring event.
	RecurringEventID string
	// CreatorEmail is the event creator's address.
	CreatorEmail string
}

// Cancelled reports whether the item marks a deletion.
func (e *RemoteEvent) Cancelled() bool {
	return e.Status == "cancelled"
}

// RecurringMaster reports whether the item is a canonical recurring-event
// definition (carries a rule and is not itself an expanded instance).
func (e *RemoteEvent) RecurringMaster() bool {
	return len(e.Recurrence) > 0 && e.RecurringEventID == ""
}

// ListQuery parameterises a page fetch against the provider's event list.
// SyncToken is mutually exclusive with the time window and with
// SingleEvents: the provider rejects the combination, so callers must never
// set both.
type ListQuery struct {
	// SyncToken is the delta cursor. Empty for a full (windowed) query.
	SyncToken string
	// PageToken continues a paginated listing.
	PageToken string
	// TimeMin and TimeMax bound a full query. Zero when SyncToken is set.
	TimeMin time.Time
	TimeMax time.Time
	// SingleEvents asks the provider to expand recurring events into
	// instances. Only valid without SyncToken.
	SingleEvents bool
	// ShowDeleted includes cancelled items, needed to observe deletions.
	ShowDeleted bool
	// OrderByStartTime orders results chronologically. Requires
	// SingleEvents.
	OrderByStartTime bool
	// MaxResults caps the page size.
	MaxResults int64
}

// EventPage is one page of a listing. NextSyncToken is only present on the
// final page of a sequence.
type EventPage struct {
	Items         []RemoteEvent
	NextPageToken string
	NextSyncToken string
}

// WebhookRegistration is the provider's answer to a watch request.
type WebhookRegistration struct {
	// ResourceID is the provider-assigned identifier to pair with the
	// channel id.
	ResourceID string
	// Expiration is when the channel stops delivering.
	Expiration time.Time
}

// CalendarAPI is the remote calendar provider boundary.
// All calls authenticate with a caller-supplied access token; failures are
// reported as *domain.RemoteError carrying the provider's status code.
type CalendarAPI interface {
	// List fetches one page of the user's primary calendar.
	List(ctx context.Context, token string, query ListQuery) (*EventPage, error)

	// Instances fetches the expanded instances of a recurring master within
	// a bounded window.
	Instances(ctx context.Context, token, eventID string, timeMin, timeMax time.Time, max int64) (*EventPage, error)

	// Insert creates an event on the remote calendar and returns its id.
	Insert(ctx context.Context, token string, event *RemoteEvent) (string, error)

	// Update rewrites a remote event.
	Update(ctx context.Context, token, eventID string, event *RemoteEvent) error

	// Delete removes a remote event. A 404 or 410 response means the event
	// is already gone and is treated as success.
	Delete(ctx context.Context, token, eventID string) error

	// Watch registers a push-notification channel for the calendar.
	Watch(ctx context.Context, token, channelID, address string, expiration time.Time) (*WebhookRegistration, error)

	// Stop cancels a push-notification channel.
	Stop(ctx context.Context, token, channelID, resourceID string) error
}
