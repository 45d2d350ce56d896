package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/market-sync/internal/model"
)

// Memory is an in-process Store. Payloads are kept encoded so reads go through
// the same decode and validation path as Postgres.
type Memory struct {
	mu  sync.Mutex
	now func() time.Time

	live    []byte
	history map[time.Time]historyRow
	locks   map[string]time.Time // name -> expiresAt
	flags   map[string]bool
	events  []model.AuditEvent
	nextID  int64
	status  map[string]model.SchedulerStatus
}

type historyRow struct {
	payload   []byte
	writtenAt time.Time
	seq       int64 // tie-break for identical clock readings
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock replaces the wall clock. Used by tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:     time.Now,
		history: make(map[time.Time]historyRow),
		locks:   make(map[string]time.Time),
		flags:   make(map[string]bool),
		status:  make(map[string]model.SchedulerStatus),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) WriteLive(ctx context.Context, snap model.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.live = payload
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReadLive(ctx context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	payload := m.live
	m.mu.Unlock()

	if payload == nil {
		return nil, nil
	}
	return decodeSnapshot(payload)
}

func (m *Memory) AppendHistory(ctx context.Context, snap model.Snapshot) (time.Time, error) {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return time.Time{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	writtenAt := m.now().UTC()
	m.history[snap.Timestamp.UTC()] = historyRow{
		payload:   payload,
		writtenAt: writtenAt,
		seq:       m.nextID,
	}
	return writtenAt, nil
}

func (m *Memory) TrimHistory(ctx context.Context, maxRecords int) (int, error) {
	if maxRecords < 0 {
		maxRecords = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	excess := len(m.history) - maxRecords
	if excess <= 0 {
		return 0, nil
	}

	keys := m.historyKeysLocked()
	for _, k := range keys[:excess] {
		delete(m.history, k)
	}
	return excess, nil
}

func (m *Memory) CountHistory(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history), nil
}

func (m *Memory) ListHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.historyKeysLocked()
	out := make([]model.HistoryRecord, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		row := m.history[keys[i]]
		snap, err := decodeSnapshot(row.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HistoryRecord{Snapshot: *snap, WrittenAt: row.writtenAt})
	}
	return out, nil
}

// historyKeysLocked returns snapshot timestamps oldest-written first.
func (m *Memory) historyKeysLocked() []time.Time {
	keys := make([]time.Time, 0, len(m.history))
	for k := range m.history {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.history[keys[i]], m.history[keys[j]]
		if !a.writtenAt.Equal(b.writtenAt) {
			return a.writtenAt.Before(b.writtenAt)
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return keys[i].Before(keys[j])
	})
	return keys
}

func (m *Memory) TryAcquire(ctx context.Context, name string, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiresAt, held := m.locks[name]; held && expiresAt.After(now) {
		return false, nil
	}
	m.locks[name] = now.Add(lease)
	return true, nil
}

func (m *Memory) ReadFlag(ctx context.Context, name string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enabled, found := m.flags[name]
	return enabled, found, nil
}

func (m *Memory) SetFlag(ctx context.Context, name string, enabled bool) error {
	m.mu.Lock()
	m.flags[name] = enabled
	m.mu.Unlock()
	return nil
}

func (m *Memory) InsertEvent(ctx context.Context, ev model.AuditEvent) (model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	ev.ID = m.nextID
	ev.CreatedAt = m.now().UTC()
	if ev.Metadata != nil {
		ev.Metadata = maps.Clone(ev.Metadata)
	}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) ListEvents(ctx context.Context, name string, limit int) ([]model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AuditEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if name == "" || m.events[i].Name == name {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *Memory) UpsertStatus(ctx context.Context, u StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *model.SchedulerStatus
	if s, ok := m.status[u.Name]; ok {
		prev = &s
	}
	m.status[u.Name] = u.apply(prev)
	return nil
}

func (m *Memory) ReadStatus(ctx context.Context, name string) (*model.SchedulerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.status[name]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Migrate is a no-op for the in-memory backend.
func (m *Memory) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() {}
