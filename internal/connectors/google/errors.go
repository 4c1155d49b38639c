package google

import (
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/agendo/calsync/internal/core/domain"
)

// wrapError converts a Google API failure into a *domain.RemoteError
// carrying the HTTP status code. A 410 surfaces to the core as cursor
// invalidation through the domain error's matching. Non-API errors
// (transport, context) pass through unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &domain.RemoteError{Status: gerr.Code, Message: gerr.Message}
	}
	return err
}

// statusOf returns the HTTP status of a Google API failure, 0 when the
// error carries none.
func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var rerr *domain.RemoteError
	if errors.As(err, &rerr) {
		return rerr.Status
	}
	return 0
}
