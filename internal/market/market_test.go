package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-sync/internal/cache"
	"github.com/rickgao/market-sync/internal/model"
	"github.com/rickgao/market-sync/internal/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func asset(symbol string, change string, rank int) model.Asset {
	a := model.Asset{
		ID:          symbol + "-id",
		Symbol:      symbol,
		Name:        strings.ToUpper(symbol),
		Class:       model.ClassCrypto,
		Price:       decimal.RequireFromString("10"),
		LastUpdated: t0,
	}
	if change != "" {
		c := decimal.RequireFromString(change)
		a.PercentChange24h = &c
	}
	if rank > 0 {
		a.MarketCapRank = &rank
	}
	return a
}

func symbols(assets []model.Asset) string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return strings.Join(out, ",")
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newAccessor(t *testing.T, c *clock, live LiveReader) (*Accessor, *cache.Cache[model.Snapshot]) {
	t.Helper()
	snapCache := cache.New[model.Snapshot](cache.WithClock(c.Now))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewAccessor(snapCache, live, logger, WithClock(c.Now)), snapCache
}

func TestGetSnapshot_CacheHit(t *testing.T) {
	c := &clock{now: t0}
	a, snapCache := newAccessor(t, c, store.NewMemory())

	snapCache.Set(model.SnapshotCacheKey, model.NewSnapshot(t0, []model.Asset{asset("btc", "1", 1)}), time.Minute)
	c.now = t0.Add(59 * time.Second)

	snap, source := a.GetSnapshot(context.Background())
	if source != model.SourceCache {
		t.Errorf("source = %q, want %q", source, model.SourceCache)
	}
	if snap.Degraded {
		t.Error("Degraded = true, want false for cache hit")
	}
	if len(snap.Assets) != 1 {
		t.Errorf("len(Assets) = %d, want 1", len(snap.Assets))
	}
}

func TestGetSnapshot_DurableFallback(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	m := store.NewMemory()
	a, snapCache := newAccessor(t, c, m)

	stale := model.NewSnapshot(t0.Add(-2*time.Hour), []model.Asset{asset("btc", "1", 1), asset("eth", "2", 2)})
	if err := m.WriteLive(ctx, stale); err != nil {
		t.Fatalf("WriteLive() error = %v", err)
	}
	// Cached two hours ago with a one minute TTL.
	c.now = t0.Add(-2 * time.Hour)
	snapCache.Set(model.SnapshotCacheKey, stale, time.Minute)
	c.now = t0

	snap, source := a.GetSnapshot(ctx)
	if source != model.SourceDurable {
		t.Errorf("source = %q, want %q", source, model.SourceDurable)
	}
	if !snap.Degraded {
		t.Error("Degraded = false, want true for durable read")
	}
	if !snap.Timestamp.Equal(stale.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, stale.Timestamp)
	}
	if len(snap.Assets) != 2 {
		t.Errorf("len(Assets) = %d, want 2", len(snap.Assets))
	}

	// The durable hit is not copied into the cache.
	if _, ok := snapCache.Get(model.SnapshotCacheKey); ok {
		t.Error("durable read refreshed the cache")
	}
}

func TestGetSnapshot_Empty(t *testing.T) {
	c := &clock{now: t0}
	a, _ := newAccessor(t, c, store.NewMemory())

	snap, source := a.GetSnapshot(context.Background())
	if source != model.SourceEmpty {
		t.Errorf("source = %q, want %q", source, model.SourceEmpty)
	}
	if !snap.Degraded {
		t.Error("Degraded = false, want true")
	}
	if !snap.Timestamp.Equal(t0) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, t0)
	}

	data, _ := json.Marshal(snap)
	if !strings.Contains(string(data), `"assets":[]`) {
		t.Errorf("json = %s, want empty assets array", data)
	}
}

// brokenLive returns a fixed error.
type brokenLive struct{ err error }

func (b brokenLive) ReadLive(ctx context.Context) (*model.Snapshot, error) {
	return nil, b.err
}

func TestGetSnapshot_DurableErrorFallsThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", fmt.Errorf("stored snapshot: %w", &model.ValidationIssue{Index: 0, Field: "price", Reason: "must be positive"})},
		{"connection", errors.New("read live snapshot: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: t0}
			var buf bytes.Buffer
			a := NewAccessor(cache.New[model.Snapshot](cache.WithClock(c.Now)), brokenLive{tt.err},
				slog.New(slog.NewTextHandler(&buf, nil)), WithClock(c.Now))

			snap, source := a.GetSnapshot(context.Background())
			if source != model.SourceEmpty || !snap.Degraded || len(snap.Assets) != 0 {
				t.Errorf("GetSnapshot() = %+v, %q, want empty degraded", snap, source)
			}
			if !strings.Contains(buf.String(), "durable read failed") {
				t.Errorf("log = %q, want durable read failure", buf.String())
			}
		})
	}
}

func TestRankMovers(t *testing.T) {
	// 12 assets, one without a 24h change.
	assets := []model.Asset{
		asset("a", "5", 1),
		asset("b", "-3", 2),
		asset("c", "12.5", 3),
		asset("d", "0", 4),
		asset("e", "-10", 5),
		asset("f", "7", 6),
		asset("g", "", 7),
		asset("h", "-0.5", 8),
		asset("i", "2", 9),
		asset("j", "-7", 10),
		asset("k", "9", 11),
		asset("l", "1", 12),
	}

	tests := []struct {
		name        string
		n           int
		wantGainers string
		wantLosers  string
	}{
		{"default n", 0, "c,k,f,a,i", "e,j,b,h,d"},
		{"negative n", -2, "c,k,f,a,i", "e,j,b,h,d"},
		{"n=3", 3, "c,k,f", "e,j,b"},
		{"n larger than half", 8, "c,k,f,a,i,l,d,h", "e,j,b"},
		{"n larger than list", 20, "c,k,f,a,i,l,d,h,b,j,e", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gainers, losers := RankMovers(assets, tt.n)
			if got := symbols(gainers); got != tt.wantGainers {
				t.Errorf("gainers = %s, want %s", got, tt.wantGainers)
			}
			if got := symbols(losers); got != tt.wantLosers {
				t.Errorf("losers = %s, want %s", got, tt.wantLosers)
			}
			if losers == nil || gainers == nil {
				t.Error("movers lists must be non-nil")
			}
		})
	}

	// Input order is untouched.
	if assets[0].Symbol != "a" || assets[11].Symbol != "l" {
		t.Error("RankMovers reordered its input")
	}
}

func TestRankMovers_TieBreak(t *testing.T) {
	assets := []model.Asset{
		asset("zzz", "1", 0),
		asset("bbb", "1", 5),
		asset("aaa", "1", 0),
		asset("ccc", "1", 2),
	}
	gainers, _ := RankMovers(assets, 4)
	if got := symbols(gainers); got != "ccc,bbb,aaa,zzz" {
		t.Errorf("gainers = %s, want ccc,bbb,aaa,zzz", got)
	}
}

func TestGetMovers(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	m := store.NewMemory()
	a, _ := newAccessor(t, c, m)

	movers := a.GetMovers(ctx, 2)
	if movers.Source != model.SourceEmpty || !movers.Degraded {
		t.Errorf("empty GetMovers() = %+v", movers)
	}
	if len(movers.Gainers) != 0 || len(movers.Losers) != 0 {
		t.Errorf("empty GetMovers() returned assets: %+v", movers)
	}

	m.WriteLive(ctx, model.NewSnapshot(t0, []model.Asset{
		asset("btc", "4", 1), asset("eth", "-2", 2), asset("sol", "8", 3), asset("xrp", "-6", 4),
	}))
	movers = a.GetMovers(ctx, 1)
	if movers.Source != model.SourceDurable || !movers.Degraded {
		t.Errorf("GetMovers() source = %q degraded = %v, want durable degraded", movers.Source, movers.Degraded)
	}
	if symbols(movers.Gainers) != "sol" || symbols(movers.Losers) != "xrp" {
		t.Errorf("GetMovers() = %s / %s, want sol / xrp", symbols(movers.Gainers), symbols(movers.Losers))
	}

	// Fewer than 2n assets: losers come from what the gainers left.
	movers = a.GetMovers(ctx, 3)
	if symbols(movers.Gainers) != "sol,btc,eth" || symbols(movers.Losers) != "xrp" {
		t.Errorf("GetMovers(3) = %s / %s, want sol,btc,eth / xrp", symbols(movers.Gainers), symbols(movers.Losers))
	}
}
