package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Authentication errors.

	// ErrNotConnected indicates the user has no usable calendar connection.
	ErrNotConnected = errors.New("calendar not connected")

	// ErrAuthFailed indicates no valid access token could be obtained and
	// the refresh attempt failed.
	ErrAuthFailed = errors.New("authentication failed")

	// Sync errors.

	// ErrCursorInvalidated indicates the provider rejected the stored delta
	// cursor. The cursor must be discarded and a full sync performed.
	ErrCursorInvalidated = errors.New("delta cursor invalidated")

	// ErrSyncTooSoon indicates a manual sync was requested inside the
	// rate-limit window.
	ErrSyncTooSoon = errors.New("synced too recently")

	// Webhook errors.

	// ErrInvalidNotification indicates an inbound notification is missing a
	// required correlation field.
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrConnectionNotFound indicates no connection matches a notification
	// or an action request.
	ErrConnectionNotFound = errors.New("connection not found")
)

// RemoteError is a non-success response from the calendar provider.
// A 410 response additionally matches ErrCursorInvalidated via errors.Is,
// since that status signals the stored cursor must be discarded.
type RemoteError struct {
	// Status is the HTTP status code returned by the provider.
	Status int
	// Message is the provider's error description, when present.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api error: status %d", e.Status)
	}
	return fmt.Sprintf("remote api error: status %d: %s", e.Status, e.Message)
}

// Is makes a 410 RemoteError match ErrCursorInvalidated.
func (e *RemoteError) Is(target error) bool {
	return target == ErrCursorInvalidated && e.Status == 410
}

// IsCursorInvalidated reports whether err signals that the stored delta
// cursor must be cleared.
func IsCursorInvalidated(err error) bool {
	return errors.Is(err, ErrCursorInvalidated)
}

// IsAuthError reports whether err belongs to the authentication failure
// class (no connection, or refresh failed).
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrAuthFailed)
}
