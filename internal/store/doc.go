// Package store persists market snapshots and sync control-plane state.
//
// Two backends implement the same methods:
//   - Postgres: pgx pool over the market_live, market_history, sync_locks,
//     sync_flags, sync_events and sync_status tables
//   - Memory: process-local maps for development and tests
//
// Snapshots are validated on write and again on read. A stored live record
// that no longer decodes or validates is reported as model.ErrValidation
// rather than coerced.
package store
