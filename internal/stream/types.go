package stream

import (
	"errors"
	"time"

	"github.com/rickgao/market-sync/internal/model"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Message types.
const (
	TypeSnapshot = "snapshot"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type     string         `json:"type"`
	Source   model.Source   `json:"source"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// TimestampedMessage is a decoded message with its local receive time.
type TimestampedMessage struct {
	Message
	ReceivedAt time.Time
}

// HubConfig holds server-side keepalive settings.
type HubConfig struct {
	PingInterval time.Duration // Must be shorter than PongWait
	PongWait     time.Duration
	WriteTimeout time.Duration
	SendBuffer   int // Per-subscriber queue; a full queue drops the subscriber
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   16,
	}
}

// ClientConfig holds consumer connection settings.
type ClientConfig struct {
	URL          string
	PingInterval time.Duration
	PingTimeout  time.Duration // No ping or pong for this long marks the connection stale
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultClientConfig returns sensible defaults for url.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   16,
	}
}
