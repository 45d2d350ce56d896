package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/market-sync/internal/metrics"
	"github.com/rickgao/market-sync/internal/model"
)

// SnapshotCache is the fresh tier.
type SnapshotCache interface {
	Get(key string) (model.Snapshot, bool)
}

// LiveReader is the durable tier.
type LiveReader interface {
	ReadLive(ctx context.Context) (*model.Snapshot, error)
}

// Accessor serves the current snapshot from the freshest tier that has one:
// cache, then the durable live record, then a synthesized empty snapshot.
type Accessor struct {
	cache  SnapshotCache
	live   LiveReader
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithClock replaces the wall clock used for empty snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Accessor) {
		a.now = now
	}
}

// NewAccessor creates an Accessor.
func NewAccessor(cache SnapshotCache, live LiveReader, logger *slog.Logger, opts ...Option) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Accessor{
		cache:  cache,
		live:   live,
		logger: logger.With("component", "market"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetSnapshot returns the best available snapshot and the tier it came from.
// It never fails: durable read errors, including corrupt records, fall through
// to the empty snapshot.
//
// A durable hit is not copied back into the cache, so stale data is never
// reported as fresh.
func (a *Accessor) GetSnapshot(ctx context.Context) (model.Snapshot, model.Source) {
	snap, source := a.lookup(ctx)
	metrics.RecordRead(string(source))
	return snap, source
}

func (a *Accessor) lookup(ctx context.Context) (model.Snapshot, model.Source) {
	if snap, ok := a.cache.Get(model.SnapshotCacheKey); ok {
		return snap.WithDegraded(false), model.SourceCache
	}

	live, err := a.live.ReadLive(ctx)
	switch {
	case err != nil:
		a.logger.Warn("durable read failed, serving empty snapshot", "err", err)
	case live != nil:
		return live.WithDegraded(true), model.SourceDurable
	}

	return model.EmptySnapshot(a.now()), model.SourceEmpty
}
