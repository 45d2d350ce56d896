package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-sync/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixedSource struct {
	snap   model.Snapshot
	source model.Source
}

func (f fixedSource) GetSnapshot(ctx context.Context) (model.Snapshot, model.Source) {
	return f.snap, f.source
}

func testSnapshot(ts time.Time, ids ...string) model.Snapshot {
	assets := make([]model.Asset, len(ids))
	for i, id := range ids {
		assets[i] = model.Asset{
			ID: id, Symbol: id, Name: id, Class: model.ClassCrypto,
			Price: decimal.NewFromInt(int64(i + 1)), LastUpdated: ts,
		}
	}
	return model.NewSnapshot(ts, assets)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10,
	}
}

func receive(t *testing.T, c *Client) TimestampedMessage {
	t.Helper()
	select {
	case msg := <-c.Messages():
		return msg
	case err := <-c.Errors():
		t.Fatalf("stream error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return TimestampedMessage{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_InitialSnapshotAndBroadcast(t *testing.T) {
	stale := testSnapshot(t0.Add(-time.Hour), "bitcoin").WithDegraded(true)
	hub := NewHub(DefaultHubConfig(), fixedSource{snap: stale, source: model.SourceDurable}, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	first := receive(t, client)
	if first.Type != TypeSnapshot || first.Source != model.SourceDurable {
		t.Errorf("first message = %s/%s, want snapshot/durable", first.Type, first.Source)
	}
	if !first.Snapshot.Degraded || len(first.Snapshot.Assets) != 1 {
		t.Errorf("first snapshot = %+v", first.Snapshot)
	}

	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.HandleSnapshot(testSnapshot(t0, "bitcoin", "ethereum"))

	next := receive(t, client)
	if next.Source != model.SourceCache {
		t.Errorf("broadcast source = %s, want cache", next.Source)
	}
	if next.Snapshot.Degraded || len(next.Snapshot.Assets) != 2 {
		t.Errorf("broadcast snapshot = %+v", next.Snapshot)
	}
	if !next.Snapshot.Assets[1].Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Assets[1].Price = %s, want 2", next.Snapshot.Assets[1].Price)
	}
	if next.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(DefaultHubConfig(), nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(testClientConfig(wsURL(server)), nil)
		if err := clients[i].Connect(context.Background()); err != nil {
			t.Fatalf("Connect %d failed: %v", i, err)
		}
		defer clients[i].Close()
	}
	waitFor(t, func() bool { return hub.Count() == 3 })

	hub.HandleSnapshot(testSnapshot(t0, "solana"))

	for i, c := range clients {
		msg := receive(t, c)
		if len(msg.Snapshot.Assets) != 1 || msg.Snapshot.Assets[0].ID != "solana" {
			t.Errorf("client %d got %+v", i, msg.Snapshot)
		}
	}
}

func TestHub_UnregistersOnClientClose(t *testing.T) {
	hub := NewHub(DefaultHubConfig(), nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, func() bool { return hub.Count() == 1 })

	client.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect() after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(DefaultHubConfig(), nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Close()

	select {
	case <-client.Errors():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe hub close")
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", hub.Count())
	}

	// New subscribers are turned away.
	late := NewClient(testClientConfig(wsURL(server)), nil)
	if err := late.Connect(context.Background()); err != nil {
		t.Fatalf("late Connect failed: %v", err)
	}
	defer late.Close()
	select {
	case <-late.Errors():
	case <-time.After(2 * time.Second):
		t.Fatal("late client was not closed")
	}
}
