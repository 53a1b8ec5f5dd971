package connection

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the connection manager's lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
)

// Message is a decoded inbound frame from the feed server.
type Message struct {
	Type      string          `json:"type"` // "subscribe-ack", "update", "error"
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Message type constants used on the wire.
const (
	TypeSubscribeAck = "subscribe-ack"
	TypeUpdate       = "update"
	TypeError        = "error"
)

// subscribeRequest is the first outbound message on every successful (re)connect.
type subscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	VaultID  int64    `json:"vaultId,omitempty"`
}

// envelope wraps an arbitrary outbound message sent via Manager.Send.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// TimestampedMessage wraps raw frame bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://app.onecapital.dev/ws)
	AuthToken        string        // Session bearer token (empty = no auth header)
	HandshakeTimeout time.Duration // Dial timeout
	PingInterval     time.Duration // How often to send keepalive pings
	PingTimeout      time.Duration // Max silence before the connection is considered stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL       string   // WebSocket URL
	AuthToken string   // Session bearer token
	Channels  []string // Channels declared in the subscribe message
	VaultID   int64    // Optional scope for the subscription (0 = unscoped)

	BaseInterval         time.Duration // First retry delay
	BackoffMultiplier    float64       // Growth factor per consecutive failure
	MaxInterval          time.Duration // Cap on a single retry delay
	MaxReconnectAttempts int           // Consecutive failures before pausing

	MessageBufferSize int // Buffer size for the outbound message stream

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	client := DefaultClientConfig()
	return ManagerConfig{
		Channels:             []string{"prices"},
		BaseInterval:         time.Second,
		BackoffMultiplier:    2,
		MaxInterval:          60 * time.Second,
		MaxReconnectAttempts: 10,
		MessageBufferSize:    1000,
		HandshakeTimeout:     client.HandshakeTimeout,
		PingInterval:         client.PingInterval,
		PingTimeout:          client.PingTimeout,
		WriteTimeout:         client.WriteTimeout,
	}
}

// ManagerStats provides a snapshot of the manager's state for status reporting.
type ManagerStats struct {
	State              State         `json:"state"`
	ReconnectAttempt   int           `json:"reconnectAttempt"`
	SubscribedChannels []string      `json:"subscribedChannels,omitempty"` // nil unless connected
	LastDelay          time.Duration `json:"lastDelay"`
	LastError          string        `json:"lastError,omitempty"`
	Exhausted          bool          `json:"exhausted"`
}
