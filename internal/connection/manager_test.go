package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// deadURL points at a port nothing listens on, so dials fail immediately.
const deadURL = "ws://127.0.0.1:9"

func testManagerConfig(url string) ManagerConfig {
	return ManagerConfig{
		URL:                  url,
		Channels:             []string{"prices"},
		BaseInterval:         10 * time.Millisecond,
		BackoffMultiplier:    2,
		MaxInterval:          time.Second,
		MaxReconnectAttempts: 10,
		MessageBufferSize:    100,
		HandshakeTimeout:     time.Second,
		PingInterval:         30 * time.Second,
		PingTimeout:          90 * time.Second,
		WriteTimeout:         time.Second,
	}
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", desc)
}

// feedServer is a mock feed endpoint. Each accepted connection reads the
// initial subscribe message onto subs, then serves frames pushed via send
// until dropped (abrupt close, no close frame) or the test server shuts down.
type feedServer struct {
	*httptest.Server
	conns int32
	subs  chan []byte
	send  chan []byte
	drop  chan struct{}
	inbox chan []byte
}

func newFeedServer(t *testing.T) *feedServer {
	fs := &feedServer{
		subs:  make(chan []byte, 10),
		send:  make(chan []byte, 10),
		drop:  make(chan struct{}, 10),
		inbox: make(chan []byte, 10),
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		atomic.AddInt32(&fs.conns, 1)

		// First inbound message is the subscribe declaration.
		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fs.subs <- sub

		// Forward any further inbound messages for test inspection.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				select {
				case fs.inbox <- msg:
				default:
				}
			}
		}()

		for {
			select {
			case frame := <-fs.send:
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-fs.drop:
				// Returning closes the TCP connection without a close frame.
				return
			case <-readDone:
				return
			}
		}
	}))

	return fs
}

func (fs *feedServer) connections() int32 {
	return atomic.LoadInt32(&fs.conns)
}

func startManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewManager(cfg, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m
}

func TestManager_ConnectSendsSubscribe(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	cfg := testManagerConfig(wsURL(fs.Server))
	cfg.VaultID = 7
	m := startManager(t, cfg)

	waitFor(t, time.Second, "connected state", m.IsConnected)

	var sub []byte
	select {
	case sub = <-fs.subs:
	case <-time.After(time.Second):
		t.Fatal("subscribe message never arrived")
	}

	var req map[string]any
	if err := json.Unmarshal(sub, &req); err != nil {
		t.Fatalf("subscribe not valid JSON: %v", err)
	}
	if req["type"] != "subscribe" {
		t.Errorf("type = %v, want subscribe", req["type"])
	}
	channels, ok := req["channels"].([]any)
	if !ok || len(channels) != 1 || channels[0] != "prices" {
		t.Errorf("channels = %v, want [prices]", req["channels"])
	}
	if req["vaultId"] != float64(7) {
		t.Errorf("vaultId = %v, want 7", req["vaultId"])
	}

	stats := m.Stats()
	if stats.State != StateConnected {
		t.Errorf("state = %s, want connected", stats.State)
	}
	if stats.ReconnectAttempt != 0 {
		t.Errorf("attempt = %d, want 0", stats.ReconnectAttempt)
	}
	if len(stats.SubscribedChannels) != 1 || stats.SubscribedChannels[0] != "prices" {
		t.Errorf("subscribed channels = %v, want [prices]", stats.SubscribedChannels)
	}
}

func TestManager_BackoffDelaysGrow(t *testing.T) {
	m := startManager(t, testManagerConfig(deadURL))

	waitFor(t, 2*time.Second, "three failed attempts", func() bool {
		return m.Stats().ReconnectAttempt >= 3
	})

	// With no jitter the schedule is exactly base × multiplier^n.
	stats := m.Stats()
	want := 10 * time.Millisecond << (stats.ReconnectAttempt - 1)
	if stats.LastDelay != want {
		t.Errorf("delay after attempt %d = %v, want %v", stats.ReconnectAttempt, stats.LastDelay, want)
	}
	if stats.LastError == "" {
		t.Error("expected a recorded dial error")
	}
}

func TestManager_AttemptResetAfterSuccess(t *testing.T) {
	// Reject the first two upgrade attempts, then accept.
	var rejected int32
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&rejected, 1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := startManager(t, testManagerConfig(wsURL(server)))

	waitFor(t, 2*time.Second, "connected after retries", m.IsConnected)

	stats := m.Stats()
	if stats.ReconnectAttempt != 0 {
		t.Errorf("attempt after successful connect = %d, want 0", stats.ReconnectAttempt)
	}
	if stats.Exhausted {
		t.Error("exhausted should be false after successful connect")
	}
}

func TestManager_NoReconnectOnCleanClose(t *testing.T) {
	var conns int32
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(&conns, 1)

		// Consume the subscribe message, then close cleanly.
		conn.ReadMessage()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second),
		)
		// Wait for the client's close response.
		conn.ReadMessage()
	}))
	defer server.Close()

	m := startManager(t, testManagerConfig(wsURL(server)))

	waitFor(t, time.Second, "disconnected after server close", func() bool {
		return m.State() == StateDisconnected
	})

	// Several base intervals pass with no new dial.
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&conns); got != 1 {
		t.Errorf("connections = %d, want 1 (clean close must not trigger reconnect)", got)
	}
	if m.Stats().ReconnectAttempt != 0 {
		t.Errorf("attempt = %d, want 0", m.Stats().ReconnectAttempt)
	}
}

func TestManager_ExhaustionPausesUntilResume(t *testing.T) {
	cfg := testManagerConfig(deadURL)
	cfg.MaxReconnectAttempts = 2
	m := startManager(t, cfg)

	waitFor(t, 2*time.Second, "attempt exhaustion", func() bool {
		return m.Stats().Exhausted
	})

	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}

	// Exhausted means no further attempts on their own.
	attempts := m.Stats().ReconnectAttempt
	time.Sleep(100 * time.Millisecond)
	if got := m.Stats().ReconnectAttempt; got != attempts {
		t.Errorf("attempt moved from %d to %d while exhausted", attempts, got)
	}

	// Foreground resume restarts the cycle from attempt zero.
	m.OnForeground()

	waitFor(t, 2*time.Second, "renewed exhaustion after resume", func() bool {
		return m.Stats().Exhausted
	})
}

func TestManager_ReconnectResetsBackoff(t *testing.T) {
	m := startManager(t, testManagerConfig(deadURL))

	waitFor(t, 2*time.Second, "grown backoff", func() bool {
		return m.Stats().ReconnectAttempt >= 3
	})

	before := m.Stats().LastDelay

	m.Reconnect()

	// The schedule restarts from the base interval, well below where it was.
	waitFor(t, time.Second, "shrunken delay after reset", func() bool {
		s := m.Stats()
		return s.ReconnectAttempt >= 1 && s.LastDelay < before
	})
}

func TestManager_SendWhileDisconnected(t *testing.T) {
	m := NewManager(testManagerConfig(deadURL), nil)

	if m.Send("refresh", nil) {
		t.Error("Send should return false while disconnected")
	}
}

func TestManager_SendWhileConnected(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	m := startManager(t, testManagerConfig(wsURL(fs.Server)))
	waitFor(t, time.Second, "connected state", m.IsConnected)
	<-fs.subs

	if !m.Send("refresh", map[string]string{"scope": "all"}) {
		t.Fatal("Send returned false while connected")
	}

	select {
	case raw := <-fs.inbox:
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("outbound message not valid JSON: %v", err)
		}
		if msg["type"] != "refresh" {
			t.Errorf("type = %v, want refresh", msg["type"])
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
}

func TestManager_MalformedFrameDropped(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	m := startManager(t, testManagerConfig(wsURL(fs.Server)))
	waitFor(t, time.Second, "connected state", m.IsConnected)
	<-fs.subs

	fs.send <- []byte(`not json{{{`)
	fs.send <- []byte(`{"type":"update","channel":"prices","data":{"BTC":{"current":"110000"}}}`)

	select {
	case msg := <-m.Messages():
		if msg.Type != TypeUpdate {
			t.Errorf("type = %s, want update (malformed frame must be dropped)", msg.Type)
		}
		if msg.Channel != "prices" {
			t.Errorf("channel = %s, want prices", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("valid message after a malformed frame never arrived")
	}

	if !m.IsConnected() {
		t.Error("malformed frame must not drop the connection")
	}
}

func TestManager_ServerErrorRecorded(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	m := startManager(t, testManagerConfig(wsURL(fs.Server)))
	waitFor(t, time.Second, "connected state", m.IsConnected)
	<-fs.subs

	fs.send <- []byte(`{"type":"error","channel":"prices","data":{"message":"subscription rejected"}}`)

	select {
	case msg := <-m.Messages():
		if msg.Type != TypeError {
			t.Errorf("type = %s, want error", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("error message never forwarded")
	}

	if m.Stats().LastError == "" {
		t.Error("server error should be recorded in stats")
	}
	if !m.IsConnected() {
		t.Error("server error message must not change connection state")
	}
}

func TestManager_OnForegroundNoopWhileConnected(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	m := startManager(t, testManagerConfig(wsURL(fs.Server)))
	waitFor(t, time.Second, "connected state", m.IsConnected)
	<-fs.subs

	m.OnForeground()
	time.Sleep(50 * time.Millisecond)

	if got := fs.connections(); got != 1 {
		t.Errorf("connections = %d, want 1 (foreground while connected must not redial)", got)
	}
}

// TestManager_DropAndRecover walks the full lifecycle: connect, subscribe,
// abnormal drop, scheduled retry at the base delay, reconnect, resubscribe.
func TestManager_DropAndRecover(t *testing.T) {
	fs := newFeedServer(t)
	defer fs.Close()

	m := startManager(t, testManagerConfig(wsURL(fs.Server)))

	waitFor(t, time.Second, "initial connect", m.IsConnected)
	<-fs.subs

	if got := m.Stats().ReconnectAttempt; got != 0 {
		t.Fatalf("attempt = %d, want 0 after initial connect", got)
	}

	// Kill the connection without a close frame.
	fs.drop <- struct{}{}

	waitFor(t, time.Second, "reconnected after drop", func() bool {
		return m.IsConnected() && fs.connections() >= 2
	})

	// A fresh subscribe arrives on the new connection.
	select {
	case <-fs.subs:
	case <-time.After(time.Second):
		t.Fatal("resubscribe never arrived on the new connection")
	}

	stats := m.Stats()
	if stats.ReconnectAttempt != 0 {
		t.Errorf("attempt = %d, want 0 after recovery", stats.ReconnectAttempt)
	}
	if stats.LastDelay != 10*time.Millisecond {
		t.Errorf("first retry delay = %v, want 10ms", stats.LastDelay)
	}
}
