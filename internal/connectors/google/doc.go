// Package google implements the calendar provider boundary against the
// Google Calendar API.
//
// All calls authenticate with a caller-supplied access token and are
// throttled through a shared token-bucket limiter. Provider failures are
// reported as *domain.RemoteError so the core can recognise cursor
// invalidation and auth failures by status code.
package google
