// Package audit records sync events and the current job status.
//
// Every event is written to the durable event store and mirrored to the
// structured logger. A storage failure is logged and never returned, so
// auditing cannot fail a tick.
package audit

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/rickgao/market-sync/internal/model"
	"github.com/rickgao/market-sync/internal/store"
)

// EventStore persists audit events.
type EventStore interface {
	InsertEvent(ctx context.Context, ev model.AuditEvent) (model.AuditEvent, error)
	ListEvents(ctx context.Context, name string, limit int) ([]model.AuditEvent, error)
}

// StatusStore persists the single current-status row per job.
type StatusStore interface {
	UpsertStatus(ctx context.Context, u store.StatusUpdate) error
	ReadStatus(ctx context.Context, name string) (*model.SchedulerStatus, error)
}

// StatusUpdate is the outcome of one tick.
type StatusUpdate struct {
	Name    string
	Outcome model.Outcome
	RunID   string
	Err     error
	Enabled bool
	Count   int
}

// Log writes audit events and status.
type Log struct {
	events EventStore
	status StatusStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces the wall clock used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates an audit log.
func New(events EventStore, status StatusStore, logger *slog.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		events: events,
		status: status,
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEvent appends an event and mirrors it to the logger.
func (l *Log) LogEvent(ctx context.Context, name, runID string, level model.Level, message string, metadata map[string]any) {
	attrs := make([]any, 0, 6+2*len(metadata))
	attrs = append(attrs, "job", name)
	if runID != "" {
		attrs = append(attrs, "run_id", runID)
	}
	if level == model.LevelSuccess {
		attrs = append(attrs, "outcome", string(model.OutcomeSuccess))
	}
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		attrs = append(attrs, k, metadata[k])
	}
	l.logger.Log(ctx, slogLevel(level), message, attrs...)

	_, err := l.events.InsertEvent(ctx, model.AuditEvent{
		Name:     name,
		RunID:    runID,
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil {
		l.logger.Error("failed to store audit event",
			"job", name,
			"message", message,
			"err", err,
		)
	}
}

// UpdateStatus upserts the job's status row. Failures are logged only.
func (l *Log) UpdateStatus(ctx context.Context, u StatusUpdate) {
	su := store.StatusUpdate{
		Name:      u.Name,
		Outcome:   u.Outcome,
		RunID:     u.RunID,
		At:        l.now(),
		Enabled:   u.Enabled,
		ItemCount: u.Count,
	}
	if u.Err != nil {
		su.Error = u.Err.Error()
	}

	if err := l.status.UpsertStatus(ctx, su); err != nil {
		l.logger.Error("failed to store status",
			"job", u.Name,
			"outcome", u.Outcome,
			"err", err,
		)
	}
}

// Status returns the stored status for name, nil if none has been written.
func (l *Log) Status(ctx context.Context, name string) (*model.SchedulerStatus, error) {
	return l.status.ReadStatus(ctx, name)
}

// Events returns the most recent events for name, newest first. An empty name
// lists all jobs.
func (l *Log) Events(ctx context.Context, name string, limit int) ([]model.AuditEvent, error) {
	return l.events.ListEvents(ctx, name, limit)
}

func slogLevel(level model.Level) slog.Level {
	switch level {
	case model.LevelWarn:
		return slog.LevelWarn
	case model.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
