package store

import (
	"context"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS market_live (
		id          TEXT PRIMARY KEY,
		snapshot_ts TIMESTAMPTZ NOT NULL,
		payload     JSONB NOT NULL,
		written_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE TABLE IF NOT EXISTS market_history (
		snapshot_ts TIMESTAMPTZ PRIMARY KEY,
		payload     JSONB NOT NULL,
		written_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS market_history_written_at_idx
		ON market_history (written_at, snapshot_ts)`,
	`CREATE TABLE IF NOT EXISTS sync_locks (
		name        TEXT PRIMARY KEY,
		acquired_at TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_flags (
		name       TEXT PRIMARY KEY,
		enabled    BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sync_events (
		id         BIGSERIAL PRIMARY KEY,
		run_id     TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL,
		level      TEXT NOT NULL,
		message    TEXT NOT NULL,
		metadata   JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS sync_events_name_id_idx
		ON sync_events (name, id DESC)`,
	`CREATE TABLE IF NOT EXISTS sync_status (
		name            TEXT PRIMARY KEY,
		enabled         BOOLEAN NOT NULL,
		last_run_id     TEXT NOT NULL DEFAULT '',
		last_attempt_at TIMESTAMPTZ,
		last_success_at TIMESTAMPTZ,
		last_failure_at TIMESTAMPTZ,
		last_error      TEXT NOT NULL DEFAULT '',
		last_item_count INTEGER NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates any missing tables and indexes.
func (p *Postgres) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	p.logger.Info("schema migrated", "statements", len(schema))
	return nil
}
