// Package database provides PostgreSQL connection pool management.
//
// The pool backs the durable store: the live snapshot, bounded history,
// sync locks, the enable flag, audit events and scheduler status.
package database
