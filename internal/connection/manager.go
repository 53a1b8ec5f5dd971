package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Manager owns at most one live WebSocket connection to the feed endpoint.
//
// On every successful (re)connect it sends a single subscribe message
// declaring the configured channels. Abnormal closures schedule a reconnect
// after baseInterval × multiplier^attempt; a normal-closure frame or an
// explicit Stop never does. Once the attempt counter reaches the configured
// maximum the manager stays disconnected until Reconnect or OnForeground
// resets it.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	client    Client
	gen       int // connection generation; stale read loops are ignored
	attempt   int
	lastDelay time.Duration
	lastErr   error
	exhausted bool
	retry     *time.Timer
	backoff   *backoff.ExponentialBackOff

	out chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultManagerConfig()
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = def.BaseInterval
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = def.MessageBufferSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = def.Channels
	}

	// RandomizationFactor 0 keeps retry delays at exactly
	// baseInterval × multiplier^attempt, capped at MaxInterval.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseInterval
	b.Multiplier = cfg.BackoffMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.MaxInterval
	b.Reset()

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		state:   StateDisconnected,
		backoff: b,
		out:     make(chan Message, cfg.MessageBufferSize),
	}
}

// Start begins the manager and initiates the first connection attempt.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.Connect()
	return nil
}

// Stop gracefully shuts down: cancels any pending retry, closes the transport
// with a normal-closure code, and never schedules a reconnect.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateClosing
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	c := m.client
	m.client = nil
	m.gen++
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	clean := true
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		clean = false
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()

	if clean {
		close(m.out)
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Messages returns the inbound message stream.
func (m *Manager) Messages() <-chan Message {
	return m.out
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the manager currently holds a live connection.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Stats returns a snapshot of the manager's state.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{
		State:            m.state,
		ReconnectAttempt: m.attempt,
		LastDelay:        m.lastDelay,
		Exhausted:        m.exhausted,
	}
	if m.state == StateConnected {
		stats.SubscribedChannels = append([]string(nil), m.cfg.Channels...)
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}

// Connect is idempotent: any existing transport is closed and any pending
// retry timer cancelled before a new dial begins. Must be called after Start.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateClosing || m.ctx == nil || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting

	c := NewClient(m.clientConfig(), m.logger.With("conn_gen", gen))
	m.client = c
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dial(c, gen)
}

// Reconnect resets the attempt counter and reconnects immediately, ignoring
// any backoff schedule. Used for user-initiated retry and foreground resume.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.attempt = 0
	m.exhausted = false
	m.backoff.Reset()
	m.mu.Unlock()

	m.Connect()
}

// OnForeground is the host-visibility resume trigger. It reconnects only when
// the manager is sitting disconnected (including after attempt exhaustion).
func (m *Manager) OnForeground() {
	m.mu.Lock()
	disconnected := m.state == StateDisconnected
	m.mu.Unlock()

	if disconnected {
		m.Reconnect()
	}
}

// Send serializes {type, data} and transmits it while connected. It returns
// false instead of an error on any failure.
func (m *Manager) Send(msgType string, data any) bool {
	m.mu.Lock()
	c := m.client
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || c == nil {
		return false
	}

	payload, err := json.Marshal(envelope{Type: msgType, Data: data})
	if err != nil {
		m.logger.Warn("failed to encode outbound message", "type", msgType, "error", err)
		return false
	}
	if err := c.Send(payload); err != nil {
		m.logger.Warn("failed to send message", "type", msgType, "error", err)
		return false
	}
	return true
}

// clientConfig derives the transport config from the manager config.
func (m *Manager) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              m.cfg.URL,
		AuthToken:        m.cfg.AuthToken,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		PingInterval:     m.cfg.PingInterval,
		PingTimeout:      m.cfg.PingTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.MessageBufferSize,
	}
}

// dial performs the blocking connect and, on success, transitions to
// connected, resets the attempt counter, and sends the subscribe declaration.
func (m *Manager) dial(c Client, gen int) {
	defer m.wg.Done()

	if err := c.Connect(m.ctx); err != nil {
		m.handleDisconnect(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		// A newer connect or a shutdown won the race.
		m.mu.Unlock()
		c.Close()
		return
	}
	m.state = StateConnected
	m.attempt = 0
	m.exhausted = false
	m.backoff.Reset()
	m.mu.Unlock()

	m.logger.Info("connected",
		"url", m.cfg.URL,
		"channels", m.cfg.Channels,
	)

	if err := m.sendSubscribe(c); err != nil {
		m.logger.Warn("failed to send subscribe", "error", err)
	}

	m.wg.Add(1)
	go m.readLoop(c, gen)
}

// sendSubscribe declares the configured channels. This is the only outbound
// message guaranteed on the connecting → connected transition.
func (m *Manager) sendSubscribe(c Client) error {
	req := subscribeRequest{
		Type:     "subscribe",
		Channels: m.cfg.Channels,
		VaultID:  m.cfg.VaultID,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// readLoop decodes inbound frames and forwards them to the message stream.
// Malformed frames are logged and dropped, never fatal.
func (m *Manager) readLoop(c Client, gen int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-c.Errors():
			m.handleDisconnect(gen, err)
			return

		case raw, ok := <-c.Messages():
			if !ok {
				return
			}

			var msg Message
			if err := json.Unmarshal(raw.Data, &msg); err != nil {
				m.logger.Warn("dropping malformed frame", "error", err)
				continue
			}

			if msg.Type == TypeError {
				// Server-side errors (including subscription rejections) are
				// recorded and forwarded, but never change connection state.
				m.mu.Lock()
				m.lastErr = &serverError{channel: msg.Channel, body: string(msg.Data)}
				m.mu.Unlock()
				m.logger.Warn("server reported error",
					"channel", msg.Channel,
					"data", string(msg.Data),
				)
			}

			select {
			case m.out <- msg:
			default:
				m.logger.Warn("message buffer full, dropping",
					"type", msg.Type,
					"channel", msg.Channel,
				)
			}
		}
	}
}

// handleDisconnect runs the disconnected transition: it classifies the cause
// and schedules a backoff retry for abnormal closures only.
func (m *Manager) handleDisconnect(gen int, cause error) {
	m.mu.Lock()

	if gen != m.gen || m.state == StateClosing || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}

	m.state = StateDisconnected
	m.lastErr = cause
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}

	if isNormalClosure(cause) {
		m.mu.Unlock()
		m.logger.Info("connection closed cleanly, not reconnecting")
		return
	}

	if m.attempt >= m.cfg.MaxReconnectAttempts {
		m.exhausted = true
		attempts := m.attempt
		m.mu.Unlock()
		m.logger.Warn("reconnect attempts exhausted, waiting for resume trigger",
			"attempts", attempts,
		)
		return
	}

	delay := m.backoff.NextBackOff()
	m.attempt++
	m.lastDelay = delay
	m.retry = time.AfterFunc(delay, m.Connect)
	attempt := m.attempt
	m.mu.Unlock()

	m.logger.Warn("connection lost, reconnect scheduled",
		"error", cause,
		"attempt", attempt,
		"delay", delay,
	)
}

// isNormalClosure reports whether the error carries the normal-closure code.
func isNormalClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

// serverError is an inbound type:"error" message surfaced via Stats.
type serverError struct {
	channel string
	body    string
}

func (e *serverError) Error() string {
	if e.channel != "" {
		return "server error on " + e.channel + ": " + e.body
	}
	return "server error: " + e.body
}
