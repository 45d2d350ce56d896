package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/market-sync/internal/model"
)

const liveID = "latest"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres wraps an open pool. The caller owns the pool unless Close is called.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	p.db.Close()
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

func (p *Postgres) WriteLive(ctx context.Context, snap model.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO market_live (id, snapshot_ts, payload, written_at)
		VALUES ($1, $2, $3, clock_timestamp())
		ON CONFLICT (id) DO UPDATE
		SET snapshot_ts = EXCLUDED.snapshot_ts,
		    payload = EXCLUDED.payload,
		    written_at = EXCLUDED.written_at`,
		liveID, snap.Timestamp.UTC(), payload,
	)
	if err != nil {
		return fmt.Errorf("write live snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) ReadLive(ctx context.Context) (*model.Snapshot, error) {
	var payload []byte
	err := p.db.QueryRow(ctx, `SELECT payload FROM market_live WHERE id = $1`, liveID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read live snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

func (p *Postgres) AppendHistory(ctx context.Context, snap model.Snapshot) (time.Time, error) {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return time.Time{}, err
	}

	var writtenAt time.Time
	err = p.db.QueryRow(ctx, `
		INSERT INTO market_history (snapshot_ts, payload, written_at)
		VALUES ($1, $2, clock_timestamp())
		ON CONFLICT (snapshot_ts) DO UPDATE
		SET payload = EXCLUDED.payload,
		    written_at = EXCLUDED.written_at
		RETURNING written_at`,
		snap.Timestamp.UTC(), payload,
	).Scan(&writtenAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("append history: %w", err)
	}
	return writtenAt.UTC(), nil
}

func (p *Postgres) TrimHistory(ctx context.Context, maxRecords int) (int, error) {
	if maxRecords < 0 {
		maxRecords = 0
	}

	tag, err := p.db.Exec(ctx, `
		WITH doomed AS (
			SELECT snapshot_ts
			FROM market_history
			ORDER BY written_at ASC, snapshot_ts ASC
			LIMIT GREATEST((SELECT count(*) FROM market_history) - $1, 0)
		)
		DELETE FROM market_history h
		USING doomed d
		WHERE h.snapshot_ts = d.snapshot_ts`,
		maxRecords,
	)
	if err != nil {
		return 0, fmt.Errorf("trim history: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) CountHistory(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM market_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

func (p *Postgres) ListHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := p.db.Query(ctx, `
		SELECT payload, written_at
		FROM market_history
		ORDER BY written_at DESC, snapshot_ts DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var payload []byte
		var writtenAt time.Time
		if err := rows.Scan(&payload, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HistoryRecord{Snapshot: *snap, WrittenAt: writtenAt.UTC()})
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Control plane
// -----------------------------------------------------------------------------

// TryAcquire takes the named lease when it is free or expired. The check and
// the write are one statement, so two racing callers cannot both win.
func (p *Postgres) TryAcquire(ctx context.Context, name string, lease time.Duration) (bool, error) {
	var got string
	err := p.db.QueryRow(ctx, `
		INSERT INTO sync_locks (name, acquired_at, expires_at)
		VALUES ($1, now(), now() + make_interval(secs => $2))
		ON CONFLICT (name) DO UPDATE
		SET acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE sync_locks.expires_at <= now()
		RETURNING name`,
		name, lease.Seconds(),
	).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return true, nil
}

func (p *Postgres) ReadFlag(ctx context.Context, name string) (bool, bool, error) {
	var enabled bool
	err := p.db.QueryRow(ctx, `SELECT enabled FROM sync_flags WHERE name = $1`, name).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("read flag %s: %w", name, err)
	}
	return enabled, true, nil
}

func (p *Postgres) SetFlag(ctx context.Context, name string, enabled bool) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO sync_flags (name, enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    updated_at = EXCLUDED.updated_at`,
		name, enabled,
	)
	if err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Audit and status
// -----------------------------------------------------------------------------

func (p *Postgres) InsertEvent(ctx context.Context, ev model.AuditEvent) (model.AuditEvent, error) {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(ev.Metadata); err != nil {
			return ev, fmt.Errorf("encode event metadata: %w", err)
		}
	}

	err := p.db.QueryRow(ctx, `
		INSERT INTO sync_events (run_id, name, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		ev.RunID, ev.Name, string(ev.Level), ev.Message, metadata,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return ev, fmt.Errorf("insert event: %w", err)
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func (p *Postgres) ListEvents(ctx context.Context, name string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := p.db.Query(ctx, `
		SELECT id, run_id, name, level, message, metadata, created_at
		FROM sync_events
		WHERE $1 = '' OR name = $1
		ORDER BY id DESC
		LIMIT $2`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var level string
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Name, &level, &ev.Message, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Level = model.Level(level)
		ev.CreatedAt = ev.CreatedAt.UTC()
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				p.logger.Warn("undecodable event metadata", "id", ev.ID, "err", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertStatus(ctx context.Context, u StatusUpdate) error {
	s := u.apply(nil)

	_, err := p.db.Exec(ctx, `
		INSERT INTO sync_status (
			name, enabled, last_run_id, last_attempt_at,
			last_success_at, last_failure_at, last_error, last_item_count, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (name) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    last_run_id = EXCLUDED.last_run_id,
		    last_attempt_at = EXCLUDED.last_attempt_at,
		    last_success_at = COALESCE(EXCLUDED.last_success_at, sync_status.last_success_at),
		    last_failure_at = COALESCE(EXCLUDED.last_failure_at, sync_status.last_failure_at),
		    last_error = EXCLUDED.last_error,
		    last_item_count = CASE WHEN $9::boolean THEN EXCLUDED.last_item_count
		                           ELSE sync_status.last_item_count END,
		    updated_at = EXCLUDED.updated_at`,
		s.Name, s.Enabled, s.LastRunID, s.LastAttemptAt,
		s.LastSuccessAt, s.LastFailureAt, s.LastError, s.LastItemCount,
		u.Outcome == model.OutcomeSuccess,
	)
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", u.Name, err)
	}
	return nil
}

func (p *Postgres) ReadStatus(ctx context.Context, name string) (*model.SchedulerStatus, error) {
	var s model.SchedulerStatus
	err := p.db.QueryRow(ctx, `
		SELECT name, enabled, last_run_id, last_attempt_at,
		       last_success_at, last_failure_at, last_error, last_item_count
		FROM sync_status
		WHERE name = $1`,
		name,
	).Scan(&s.Name, &s.Enabled, &s.LastRunID, &s.LastAttemptAt,
		&s.LastSuccessAt, &s.LastFailureAt, &s.LastError, &s.LastItemCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status %s: %w", name, err)
	}
	return &s, nil
}
