package lock

import (
	"sync"
	"time"
)

// RateGuard enforces a minimum interval between provider calls in this process.
// The scheduled loop and the manual trigger run on different goroutines, so
// all access is under a mutex.
type RateGuard struct {
	minInterval time.Duration

	mu         sync.Mutex
	lastCallAt time.Time // zero = unset
}

// NewRateGuard creates a guard. A zero interval never blocks.
func NewRateGuard(minInterval time.Duration) *RateGuard {
	return &RateGuard{minInterval: minInterval}
}

// Begin reports whether a call may start at now. On true, now is recorded as
// the last call time before the caller contacts the provider.
func (g *RateGuard) Begin(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastCallAt.IsZero() && now.Sub(g.lastCallAt) < g.minInterval {
		return false
	}
	g.lastCallAt = now
	return true
}

// Mark records a call at now without checking the interval.
func (g *RateGuard) Mark(now time.Time) {
	g.mu.Lock()
	g.lastCallAt = now
	g.mu.Unlock()
}

// Reset clears the last call time so the next Begin succeeds.
func (g *RateGuard) Reset() {
	g.mu.Lock()
	g.lastCallAt = time.Time{}
	g.mu.Unlock()
}

// LastCallAt returns the recorded call time, zero when unset.
func (g *RateGuard) LastCallAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCallAt
}
