// Package store is the SQLite side of DynaQuery.
//
// It has two jobs:
//   - run compiled plans against the application tables and return rows
//     in the shape the engine asked for (Backend)
//   - keep saved query definitions (SavedQuery)
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - one open connection, so writes are serialized by database/sql
//
// # Default Query
//
// At most one saved query is the default. Making a query the default
// clears the flag on every other row in the same transaction, and a
// partial unique index on is_default rejects any second default that
// slips past that.
//
// # Timestamps
//
// Timestamps are stored as RFC 3339 text in UTC, so text comparison
// orders them chronologically.
package store
