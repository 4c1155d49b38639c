// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ConnectionStore: connection record persistence (credentials, cursor,
//     webhook registration, timestamps). The store is trusted to encrypt
//     credentials at rest.
//   - EventStore: event CRUD keyed by (user, external id)
//   - CalendarAPI: the remote calendar provider (delta queries, instance
//     expansion, watch channels, event CRUD)
//   - TokenEndpoint: OAuth code exchange, refresh and revocation
//   - ConfigStore: application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
