package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rickgao/market-sync/internal/audit"
	"github.com/rickgao/market-sync/internal/lock"
	"github.com/rickgao/market-sync/internal/model"
)

// Fetcher pulls the ranked asset list from the provider.
type Fetcher interface {
	FetchTopAssets(ctx context.Context, count int, apiKey string) ([]model.Asset, time.Time, error)
}

// SnapshotCache holds the freshest snapshot.
type SnapshotCache interface {
	Set(key string, value model.Snapshot, ttl time.Duration)
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	WriteLive(ctx context.Context, snap model.Snapshot) error
	AppendHistory(ctx context.Context, snap model.Snapshot) (time.Time, error)
	TrimHistory(ctx context.Context, maxRecords int) (int, error)
}

// FlagChecker answers the remote enable flag.
type FlagChecker interface {
	IsEnabled(ctx context.Context, name string) bool
}

// Auditor records tick outcomes.
type Auditor interface {
	LogEvent(ctx context.Context, name, runID string, level model.Level, message string, metadata map[string]any)
	UpdateStatus(ctx context.Context, u audit.StatusUpdate)
}

// SnapshotHandler receives every snapshot produced by a successful tick.
type SnapshotHandler interface {
	HandleSnapshot(snap model.Snapshot)
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.Snapshot)

func (f SnapshotHandlerFunc) HandleSnapshot(s model.Snapshot) {
	f(s)
}

// Config holds scheduler configuration.
type Config struct {
	Name            string        // Job name for status and audit
	TopN            int           // Assets per fetch, 1..250
	Interval        time.Duration // Base delay between ticks
	Jitter          time.Duration // Max random offset applied to each delay
	MinCallInterval time.Duration // Rate guard window
	CacheTTL        time.Duration
	HistoryMax      int
	LockName        string
	LockLease       time.Duration
	FlagName        string
	APIKey          string // Optional provider key override
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:            "market_sync",
		TopN:            100,
		Interval:        60 * time.Second,
		Jitter:          10 * time.Second,
		MinCallInterval: 30 * time.Second,
		CacheTTL:        60 * time.Second,
		HistoryMax:      1440,
		LockName:        "market_sync",
		LockLease:       55 * time.Second,
		FlagName:        "market_sync_enabled",
	}
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Fetcher Fetcher
	Cache   SnapshotCache
	Store   SnapshotStore
	Locker  lock.Locker
	Flags   FlagChecker
	Auditor Auditor
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithRand replaces the jitter source. f(n) must return a value in [0, n).
func WithRand(f func(n int64) int64) Option {
	return func(s *Scheduler) {
		s.randN = f
	}
}

// WithHandler registers a snapshot handler.
func WithHandler(h SnapshotHandler) Option {
	return func(s *Scheduler) {
		s.handlers = append(s.handlers, h)
	}
}

// Scheduler runs sync ticks on a jittered interval.
type Scheduler struct {
	cfg    Config
	deps   Deps
	guard  *lock.RateGuard
	logger *slog.Logger
	now    func() time.Time
	randN  func(n int64) int64

	handlersMu sync.RWMutex
	handlers   []SnapshotHandler

	// Serializes ticks from the loop and RunNow.
	tickMu sync.Mutex

	statusMu sync.RWMutex
	status   model.SchedulerStatus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(cfg Config, deps Deps, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:    cfg,
		deps:   deps,
		guard:  lock.NewRateGuard(cfg.MinCallInterval),
		logger: logger.With("component", "scheduler", "job", cfg.Name),
		now:    time.Now,
		randN:  rand.Int64N,
		status: model.SchedulerStatus{Name: cfg.Name, Enabled: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddHandler registers a snapshot handler after construction.
func (s *Scheduler) AddHandler(h SnapshotHandler) {
	s.handlersMu.Lock()
	s.handlers = append(s.handlers, h)
	s.handlersMu.Unlock()
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"jitter", s.cfg.Jitter,
		"top_n", s.cfg.TopN,
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main loop: initial delay in [0, jitter], then interval ± jitter.
func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.initialDelay())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.Tick(s.ctx, ModeScheduled); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("scheduled tick failed", "err", err)
		}

		timer.Reset(s.nextDelay())
	}
}

func (s *Scheduler) initialDelay() time.Duration {
	j := int64(s.cfg.Jitter)
	if j <= 0 {
		return 0
	}
	return time.Duration(s.randN(j + 1))
}

func (s *Scheduler) nextDelay() time.Duration {
	j := int64(s.cfg.Jitter)
	if j <= 0 {
		return s.cfg.Interval
	}
	offset := s.randN(2*j+1) - j
	return max(s.cfg.Interval+time.Duration(offset), 0)
}

// Status returns the in-memory last-known status.
func (s *Scheduler) Status() model.SchedulerStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
