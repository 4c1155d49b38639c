// Package sqlite provides SQLite-based implementations of the storage
// ports. It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode and
// embedded schema migrations.
package sqlite
