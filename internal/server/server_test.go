package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-sync/internal/market"
	"github.com/rickgao/market-sync/internal/model"
	"github.com/rickgao/market-sync/internal/scheduler"
	"github.com/rickgao/market-sync/internal/stream"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	snap   model.Snapshot
	source model.Source
	lastN  int
}

func (f *fakeReader) GetSnapshot(ctx context.Context) (model.Snapshot, model.Source) {
	return f.snap, f.source
}

func (f *fakeReader) GetMovers(ctx context.Context, n int) market.Movers {
	f.lastN = n
	gainers, losers := market.RankMovers(f.snap.Assets, n)
	return market.Movers{Gainers: gainers, Losers: losers, Degraded: f.snap.Degraded, Source: f.source}
}

type fakeTrigger struct {
	result   scheduler.Result
	err      error
	status   model.SchedulerStatus
	delay    time.Duration
	calls    int
	deadline time.Time
}

func (f *fakeTrigger) RunNow(ctx context.Context) (scheduler.Result, error) {
	f.calls++
	f.deadline, _ = ctx.Deadline()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result, f.err
}

func (f *fakeTrigger) Status() model.SchedulerStatus {
	return f.status
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func asset(id string, change int64) model.Asset {
	c := decimal.NewFromInt(change)
	return model.Asset{
		ID: id, Symbol: id, Name: id, Class: model.ClassCrypto,
		Price: decimal.NewFromInt(10), PercentChange24h: &c, LastUpdated: t0,
	}
}

func newTestServer(reader *fakeReader, trigger *fakeTrigger, opts ...Option) *Server {
	return New(DefaultConfig(), reader, trigger, nil, opts...)
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		snap     model.Snapshot
		source   model.Source
		degraded bool
		assets   int
	}{
		{"cache", model.NewSnapshot(t0, []model.Asset{asset("a", 1)}), model.SourceCache, false, 1},
		{"durable", model.NewSnapshot(t0, []model.Asset{asset("a", 1)}).WithDegraded(true), model.SourceDurable, true, 1},
		{"empty", model.EmptySnapshot(t0), model.SourceEmpty, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeReader{snap: tt.snap, source: tt.source}, &fakeTrigger{})
			rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/snapshot")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get(DataSourceHeader); got != string(tt.source) {
				t.Errorf("%s = %q, want %q", DataSourceHeader, got, tt.source)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
			body := decode[model.Snapshot](t, rec)
			if body.Degraded != tt.degraded {
				t.Errorf("degraded = %v, want %v", body.Degraded, tt.degraded)
			}
			if len(body.Assets) != tt.assets {
				t.Errorf("len(assets) = %d, want %d", len(body.Assets), tt.assets)
			}
		})
	}
}

func TestSnapshot_EmptyAssetsEncodeAsArray(t *testing.T) {
	s := newTestServer(&fakeReader{snap: model.EmptySnapshot(t0), source: model.SourceEmpty}, &fakeTrigger{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/snapshot")

	if !strings.Contains(rec.Body.String(), `"assets":[]`) {
		t.Errorf("body = %s, want empty assets array", rec.Body.String())
	}
}

func TestMovers(t *testing.T) {
	assets := []model.Asset{asset("a", 5), asset("b", -3), asset("c", 9), asset("d", -8), asset("e", 1), asset("f", 2)}
	tests := []struct {
		name     string
		query    string
		wantCode int
		wantN    int
	}{
		{"default", "", http.StatusOK, market.DefaultMoversCount},
		{"explicit", "?n=2", http.StatusOK, 2},
		{"max", "?n=50", http.StatusOK, 50},
		{"zero", "?n=0", http.StatusBadRequest, 0},
		{"too many", "?n=51", http.StatusBadRequest, 0},
		{"not a number", "?n=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{snap: model.NewSnapshot(t0, assets), source: model.SourceCache}
			s := newTestServer(reader, &fakeTrigger{})
			rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/movers"+tt.query)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if reader.lastN != tt.wantN {
				t.Errorf("n = %d, want %d", reader.lastN, tt.wantN)
			}
			if got := rec.Header().Get(DataSourceHeader); got != "cache" {
				t.Errorf("%s = %q, want cache", DataSourceHeader, got)
			}
		})
	}
}

func TestMovers_Body(t *testing.T) {
	assets := []model.Asset{asset("a", 5), asset("b", -3), asset("c", 9), asset("d", -8)}
	reader := &fakeReader{snap: model.NewSnapshot(t0, assets), source: model.SourceCache}
	s := newTestServer(reader, &fakeTrigger{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/movers?n=1")
	body := decode[market.Movers](t, rec)

	if len(body.Gainers) != 1 || body.Gainers[0].ID != "c" {
		t.Errorf("gainers = %+v, want [c]", body.Gainers)
	}
	if len(body.Losers) != 1 || body.Losers[0].ID != "d" {
		t.Errorf("losers = %+v, want [d]", body.Losers)
	}
}

func TestSync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		trigger := &fakeTrigger{result: scheduler.Result{RunID: "run-1", Success: true, Count: 42}}
		s := newTestServer(&fakeReader{}, trigger)

		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/market/sync")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decode[map[string]any](t, rec)
		if body["success"] != true || body["count"] != float64(42) || body["run_id"] != "run-1" {
			t.Errorf("body = %v", body)
		}
		if trigger.calls != 1 {
			t.Errorf("RunNow calls = %d, want 1", trigger.calls)
		}
	})

	t.Run("failure", func(t *testing.T) {
		trigger := &fakeTrigger{
			result: scheduler.Result{RunID: "run-2"},
			err:    errors.New("fetch top assets: provider unavailable"),
		}
		s := newTestServer(&fakeReader{}, trigger)

		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/market/sync")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
		body := decode[map[string]any](t, rec)
		if body["success"] != false || body["run_id"] != "run-2" {
			t.Errorf("body = %v", body)
		}
		if body["error"] != "fetch top assets: provider unavailable" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("tick bounded by sync timeout", func(t *testing.T) {
		trigger := &fakeTrigger{result: scheduler.Result{RunID: "run-3", Success: true}}
		cfg := DefaultConfig()
		cfg.SyncTimeout = 45 * time.Second
		s := New(cfg, &fakeReader{}, trigger, nil)

		start := time.Now()
		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/market/sync")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if trigger.deadline.IsZero() {
			t.Fatal("RunNow context has no deadline")
		}
		if d := trigger.deadline.Sub(start); d <= 0 || d > cfg.SyncTimeout {
			t.Errorf("RunNow deadline in %v, want within %v", d, cfg.SyncTimeout)
		}
	})

	t.Run("response outlives server write timeout", func(t *testing.T) {
		trigger := &fakeTrigger{
			result: scheduler.Result{RunID: "run-4", Success: true, Count: 7},
			delay:  250 * time.Millisecond,
		}
		cfg := DefaultConfig()
		cfg.WriteTimeout = 100 * time.Millisecond
		cfg.SyncTimeout = time.Second
		s := New(cfg, &fakeReader{}, trigger, nil)

		ts := httptest.NewUnstartedServer(s.Handler())
		ts.Config.WriteTimeout = cfg.WriteTimeout
		ts.Start()
		defer ts.Close()

		resp, err := http.Post(ts.URL+"/api/v1/market/sync", "application/json", nil)
		if err != nil {
			t.Fatalf("POST sync: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["run_id"] != "run-4" || body["count"] != float64(7) {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("get not allowed", func(t *testing.T) {
		trigger := &fakeTrigger{}
		s := newTestServer(&fakeReader{}, trigger)

		rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/sync")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
		if trigger.calls != 0 {
			t.Errorf("RunNow calls = %d, want 0", trigger.calls)
		}
	})
}

func TestStatus(t *testing.T) {
	at := t0
	trigger := &fakeTrigger{status: model.SchedulerStatus{
		Name: "market_sync", Enabled: true, LastRunID: "run-9", LastSuccessAt: &at, LastItemCount: 100,
	}}
	s := newTestServer(&fakeReader{}, trigger)

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/market/status")
	body := decode[model.SchedulerStatus](t, rec)

	if body.Name != "market_sync" || body.LastRunID != "run-9" || body.LastItemCount != 100 {
		t.Errorf("status = %+v", body)
	}
	if body.LastSuccessAt == nil || !body.LastSuccessAt.Equal(t0) {
		t.Errorf("LastSuccessAt = %v, want %v", body.LastSuccessAt, t0)
	}
}

func TestHealth(t *testing.T) {
	succeeded := t0
	tests := []struct {
		name       string
		status     model.SchedulerStatus
		checks     []Option
		wantCode   int
		wantStatus string
	}{
		{
			name:       "never synced",
			status:     model.SchedulerStatus{Enabled: true},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "synced",
			status:     model.SchedulerStatus{Enabled: true, LastSuccessAt: &succeeded},
			checks:     []Option{WithCheck("postgres", fakePinger{})},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "dependency down",
			status:     model.SchedulerStatus{Enabled: true, LastSuccessAt: &succeeded},
			checks:     []Option{WithCheck("postgres", fakePinger{}), WithCheck("redis", fakePinger{err: errors.New("connection refused")})},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeReader{}, &fakeTrigger{status: tt.status}, tt.checks...)
			rec := do(t, s.Handler(), http.MethodGet, "/health")

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decode[struct {
				Status     string         `json:"status"`
				Components map[string]any `json:"components"`
			}](t, rec)
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if _, ok := body.Components["scheduler"]; !ok {
				t.Error("scheduler component missing")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeReader{snap: model.EmptySnapshot(t0), source: model.SourceEmpty}, &fakeTrigger{})
	h := s.Handler()

	do(t, h, http.MethodGet, "/api/v1/market/snapshot")
	rec := do(t, h, http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `route="/api/v1/market/snapshot"`) {
		t.Errorf("metrics missing snapshot route label")
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	s := New(cfg, &fakeReader{}, &fakeTrigger{}, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStreamRoute(t *testing.T) {
	snap := model.NewSnapshot(t0, []model.Asset{asset("bitcoin", 3)})
	reader := &fakeReader{snap: snap, source: model.SourceCache}
	hub := stream.NewHub(stream.DefaultHubConfig(), reader, nil)
	defer hub.Close()

	s := newTestServer(reader, &fakeTrigger{}, WithStream(hub))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	client := stream.NewClient(stream.DefaultClientConfig("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/market"), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case msg := <-client.Messages():
		if msg.Source != model.SourceCache || len(msg.Snapshot.Assets) != 1 {
			t.Errorf("initial message = %+v", msg.Message)
		}
	case err := <-client.Errors():
		t.Fatalf("stream error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}
}

func TestStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	s := New(cfg, &fakeReader{}, &fakeTrigger{}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
