package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/market-sync/internal/metrics"
	"github.com/rickgao/market-sync/internal/model"
)

// SnapshotSource supplies the snapshot a new subscriber receives first.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) (model.Snapshot, model.Source)
}

// Hub fans snapshots out to WebSocket subscribers.
type Hub struct {
	cfg      HubConfig
	source   SnapshotSource
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a hub. source may be nil, in which case subscribers wait for
// the next broadcast.
func NewHub(cfg HubConfig, source SnapshotSource, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		source: source,
		logger: logger.With("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

// HandleSnapshot broadcasts a freshly synced snapshot.
func (h *Hub) HandleSnapshot(snap model.Snapshot) {
	data, err := json.Marshal(Message{Type: TypeSnapshot, Source: model.SourceCache, Snapshot: snap})
	if err != nil {
		h.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	var slow []*subscriber

	h.mu.RLock()
	for s := range h.clients {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.Warn("subscriber too slow, disconnecting", "remote", s.conn.RemoteAddr().String())
		h.unregister(s)
	}
}

// ServeHTTP upgrades the request and registers a subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	s := &subscriber{
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	// Queue the current snapshot before registering so it precedes broadcasts.
	if h.source != nil && cap(s.send) > 0 {
		snap, source := h.source.GetSnapshot(r.Context())
		if data, err := json.Marshal(Message{Type: TypeSnapshot, Source: source, Snapshot: snap}); err == nil {
			s.send <- data
		}
	}

	if !h.register(s) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	go h.writePump(s)
	go h.readPump(s)
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		clients = append(clients, s)
	}
	h.mu.Unlock()

	for _, s := range clients {
		h.unregister(s)
	}
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[s] = struct{}{}
	metrics.StreamClientConnected()
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[s]
	delete(h.clients, s)
	h.mu.Unlock()

	if ok {
		metrics.StreamClientDisconnected()
		s.once.Do(func() { close(s.send) })
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("write failed", "err", err)
				h.unregister(s)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(s)
				return
			}
		}
	}
}

// readPump discards inbound frames; it exists to process pongs and detect close.
func (h *Hub) readPump(s *subscriber) {
	defer h.unregister(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("subscriber closed", "err", err)
			}
			return
		}
	}
}
