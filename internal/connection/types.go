package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Message is one decoded server frame with its local receive time.
type Message struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"-"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // e.g. ws://localhost:3000/ws
	PingTimeout      time.Duration // Max time without a server ping before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration
	BufferSize       int // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              "ws://localhost:3000/ws",
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       1024,
	}
}

// ServerConfig configures the WebSocket server.
type ServerConfig struct {
	WriteTimeout    time.Duration // Deadline per outbound frame
	PingInterval    time.Duration // Interval between server pings
	PongTimeout     time.Duration // Read deadline, extended by every pong
	ReadLimit       int64         // Max inbound frame size in bytes
	AllowedOrigins  []string      // Empty allows any origin
	DisconnectGrace time.Duration // Time allowed for engine cleanup after close
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		WriteTimeout:    5 * time.Second,
		PingInterval:    25 * time.Second,
		PongTimeout:     60 * time.Second,
		ReadLimit:       4096,
		DisconnectGrace: 5 * time.Second,
	}
}
