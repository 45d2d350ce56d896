package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/market-sync/internal/audit"
	"github.com/rickgao/market-sync/internal/metrics"
	"github.com/rickgao/market-sync/internal/model"
)

// Mode distinguishes loop ticks from operator-triggered ones.
type Mode string

const (
	ModeScheduled Mode = "scheduled"
	ModeManual    Mode = "manual"
)

// SkipReason explains why a scheduled tick did no work. Skips are not errors.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipDisabled    SkipReason = "disabled"
	SkipLocked      SkipReason = "lock_unavailable"
	SkipRateLimited SkipReason = "rate_limited"
)

// Result describes one tick.
type Result struct {
	RunID    string        `json:"run_id"`
	Success  bool          `json:"success"`
	Count    int           `json:"count"`
	Skipped  SkipReason    `json:"skipped,omitempty"`
	Duration time.Duration `json:"-"`
}

// RunNow performs a manual tick, bypassing the flag, lease and rate checks.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	return s.Tick(ctx, ModeManual)
}

// Tick runs one sync attempt. The returned error is non-nil only when the
// pipeline itself failed; skipped ticks return a Result with Skipped set.
func (s *Scheduler) Tick(ctx context.Context, mode Mode) (Result, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	runID := uuid.NewString()
	start := s.now()

	if mode == ModeScheduled {
		if reason := s.preflight(ctx, runID, start); reason != SkipNone {
			metrics.RecordTick(string(mode), "skipped_"+string(reason), 0)
			return Result{RunID: runID, Skipped: reason}, nil
		}
	} else {
		s.guard.Mark(start)
	}

	s.setAttempt(runID, start)

	snap, err := s.pipeline(ctx, runID)
	duration := s.now().Sub(start)
	if err != nil {
		s.fail(ctx, mode, runID, start, duration, err)
		return Result{RunID: runID, Duration: duration}, err
	}

	count := len(snap.Assets)
	s.succeed(ctx, mode, runID, start, duration, count)
	s.notify(snap)
	return Result{RunID: runID, Success: true, Count: count, Duration: duration}, nil
}

// preflight runs the enable flag, lease and rate checks in that order.
func (s *Scheduler) preflight(ctx context.Context, runID string, now time.Time) SkipReason {
	enabled := s.deps.Flags.IsEnabled(ctx, s.cfg.FlagName)
	s.setEnabled(enabled)
	if !enabled {
		s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelWarn, "disabled, skipping",
			map[string]any{"flag": s.cfg.FlagName})
		return SkipDisabled
	}

	acquired, err := s.deps.Locker.TryAcquire(ctx, s.cfg.LockName, s.cfg.LockLease)
	if err != nil {
		s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelWarn, "lock check failed, skipping",
			map[string]any{"lock": s.cfg.LockName, "error": err.Error()})
		return SkipLocked
	}
	if !acquired {
		s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelInfo, "lock held elsewhere, skipping",
			map[string]any{"lock": s.cfg.LockName})
		return SkipLocked
	}

	if !s.guard.Begin(now) {
		s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelInfo, "called too recently, skipping",
			map[string]any{
				"last_call_at":      s.guard.LastCallAt().UTC().Format(time.RFC3339Nano),
				"min_call_interval": s.cfg.MinCallInterval.String(),
			})
		return SkipRateLimited
	}

	return SkipNone
}

// pipeline fetches, validates, caches and persists one snapshot.
func (s *Scheduler) pipeline(ctx context.Context, runID string) (model.Snapshot, error) {
	assets, asOf, err := s.deps.Fetcher.FetchTopAssets(ctx, s.cfg.TopN, s.cfg.APIKey)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch top assets: %w", err)
	}

	// Only snapshots that WriteLive would accept may enter the cache.
	snap := model.NewSnapshot(asOf, assets)
	if err := model.ValidateSnapshot(snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("validate snapshot: %w", err)
	}
	s.deps.Cache.Set(model.SnapshotCacheKey, snap, s.cfg.CacheTTL)

	if err := s.deps.Store.WriteLive(ctx, snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("write live: %w", err)
	}
	if _, err := s.deps.Store.AppendHistory(ctx, snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("append history: %w", err)
	}
	trimmed, err := s.deps.Store.TrimHistory(ctx, s.cfg.HistoryMax)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("trim history: %w", err)
	}
	if trimmed > 0 {
		s.logger.Debug("history trimmed", "run_id", runID, "deleted", trimmed)
		metrics.RecordHistoryTrimmed(trimmed)
	}

	metrics.RecordSnapshot(len(assets), snap.Timestamp)
	return snap, nil
}

func (s *Scheduler) succeed(ctx context.Context, mode Mode, runID string, start time.Time, d time.Duration, count int) {
	metrics.RecordTick(string(mode), string(model.OutcomeSuccess), d)

	s.statusMu.Lock()
	at := start.UTC()
	s.status.LastSuccessAt = &at
	s.status.LastError = ""
	s.status.LastItemCount = count
	enabled := s.status.Enabled
	s.statusMu.Unlock()

	s.deps.Auditor.UpdateStatus(ctx, audit.StatusUpdate{
		Name:    s.cfg.Name,
		Outcome: model.OutcomeSuccess,
		RunID:   runID,
		Enabled: enabled,
		Count:   count,
	})
	s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelSuccess, "sync complete", map[string]any{
		"mode":        string(mode),
		"count":       count,
		"duration_ms": d.Milliseconds(),
	})
}

// fail records the failure and clears the rate guard so the next tick may retry.
func (s *Scheduler) fail(ctx context.Context, mode Mode, runID string, start time.Time, d time.Duration, err error) {
	s.guard.Reset()
	metrics.RecordTick(string(mode), string(model.OutcomeFailure), d)

	s.statusMu.Lock()
	at := start.UTC()
	s.status.LastFailureAt = &at
	s.status.LastError = err.Error()
	enabled := s.status.Enabled
	s.statusMu.Unlock()

	s.deps.Auditor.UpdateStatus(ctx, audit.StatusUpdate{
		Name:    s.cfg.Name,
		Outcome: model.OutcomeFailure,
		RunID:   runID,
		Err:     err,
		Enabled: enabled,
	})
	s.deps.Auditor.LogEvent(ctx, s.cfg.Name, runID, model.LevelError, "sync failed", map[string]any{
		"mode":        string(mode),
		"error":       err.Error(),
		"duration_ms": d.Milliseconds(),
	})
}

func (s *Scheduler) notify(snap model.Snapshot) {
	s.handlersMu.RLock()
	handlers := s.handlers
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		h.HandleSnapshot(snap)
	}
}

func (s *Scheduler) setAttempt(runID string, at time.Time) {
	at = at.UTC()
	s.statusMu.Lock()
	s.status.LastRunID = runID
	s.status.LastAttemptAt = &at
	s.statusMu.Unlock()
}

func (s *Scheduler) setEnabled(enabled bool) {
	s.statusMu.Lock()
	s.status.Enabled = enabled
	s.statusMu.Unlock()
}
