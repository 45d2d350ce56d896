package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rickgao/market-sync/internal/model"
)

// Store is the full set of durable operations used by the service.
type Store interface {
	WriteLive(ctx context.Context, snap model.Snapshot) error
	ReadLive(ctx context.Context) (*model.Snapshot, error)
	AppendHistory(ctx context.Context, snap model.Snapshot) (time.Time, error)
	TrimHistory(ctx context.Context, maxRecords int) (int, error)
	CountHistory(ctx context.Context) (int, error)
	ListHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error)

	TryAcquire(ctx context.Context, name string, lease time.Duration) (bool, error)

	ReadFlag(ctx context.Context, name string) (enabled, found bool, err error)
	SetFlag(ctx context.Context, name string, enabled bool) error

	InsertEvent(ctx context.Context, ev model.AuditEvent) (model.AuditEvent, error)
	ListEvents(ctx context.Context, name string, limit int) ([]model.AuditEvent, error)

	UpsertStatus(ctx context.Context, u StatusUpdate) error
	ReadStatus(ctx context.Context, name string) (*model.SchedulerStatus, error)

	Migrate(ctx context.Context) error
	Close()
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

// StatusUpdate records the outcome of one tick against the status row.
type StatusUpdate struct {
	Name      string
	Outcome   model.Outcome
	RunID     string
	At        time.Time
	Error     string // failure message, empty on success
	Enabled   bool
	ItemCount int // only applied on success
}

// apply folds u into the previous status (nil for first write).
func (u StatusUpdate) apply(prev *model.SchedulerStatus) model.SchedulerStatus {
	var s model.SchedulerStatus
	if prev != nil {
		s = *prev
	}

	at := u.At.UTC()
	s.Name = u.Name
	s.Enabled = u.Enabled
	s.LastRunID = u.RunID
	s.LastAttemptAt = &at

	switch u.Outcome {
	case model.OutcomeSuccess:
		s.LastSuccessAt = &at
		s.LastError = ""
		s.LastItemCount = u.ItemCount
	default:
		s.LastFailureAt = &at
		s.LastError = u.Error
	}
	return s
}

// encodeSnapshot validates and serializes a snapshot for storage.
func encodeSnapshot(snap model.Snapshot) ([]byte, error) {
	if err := model.ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	snap.Timestamp = snap.Timestamp.UTC()
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

// decodeSnapshot parses and re-validates a stored payload.
func decodeSnapshot(payload []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode stored snapshot: %w", model.ErrValidation, err)
	}
	if err := model.ValidateSnapshot(snap); err != nil {
		return nil, fmt.Errorf("stored snapshot: %w", err)
	}
	return &snap, nil
}
