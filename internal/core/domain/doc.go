// Package domain defines the core business entities for calsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Connection: A user's link to an external calendar account
//   - Event: A local calendar event row
//   - Notification: An inbound push notification from the provider
//   - SyncResult: The outcome of one synchronisation pass
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
