package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// mockServer simulates the remote realtime endpoint for tests. It speaks
// just enough of the protocol: it authenticates the handshake, pushes
// session.created, replays scripted frames, records everything the client
// sends, and can be told to drop the first N connections to exercise the
// reconnection path.
type mockServer struct {
	server *httptest.Server
	t      *testing.T

	mu             sync.Mutex
	conns          int
	dropConns      int  // close this many connections right after the config frame
	rejecting      bool // refuse the WebSocket upgrade for new connections
	active         map[int]*websocket.Conn
	handshakeEnter chan struct{} // one token per handshake held at the gate
	handshakeGate  chan struct{} // handshakes proceed once closed
	scripted       []any         // frames pushed to every connection after session.created

	received chan []byte // client frames, all connections interleaved
}

func newMockServer(t *testing.T) *mockServer {
	ms := &mockServer{
		t:        t,
		active:   make(map[int]*websocket.Conn),
		received: make(chan []byte, 64),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handleWebSocket))
	return ms
}

func (ms *mockServer) Close() {
	ms.server.Close()
}

// URL returns the ws:// endpoint of the mock server.
func (ms *mockServer) URL() string {
	return "ws" + strings.TrimPrefix(ms.server.URL, "http")
}

// Push schedules a frame to be sent to every future connection.
func (ms *mockServer) Push(msg any) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scripted = append(ms.scripted, msg)
}

// DropConnections makes the server close the first n connections right
// after receiving the client's configuration frame.
func (ms *mockServer) DropConnections(n int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.dropConns = n
}

// HoldHandshakes makes the server park every WebSocket handshake until
// release is called. A token arrives on entered for each parked handshake.
func (ms *mockServer) HoldHandshakes() (entered <-chan struct{}, release func()) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	enter := make(chan struct{}, 8)
	gate := make(chan struct{})
	ms.handshakeEnter = enter
	ms.handshakeGate = gate
	return enter, func() { close(gate) }
}

// RejectNewConns makes the server refuse every future WebSocket upgrade.
func (ms *mockServer) RejectNewConns() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.rejecting = true
}

// CloseActiveConns force-closes every live connection, simulating a network
// partition for established sockets.
func (ms *mockServer) CloseActiveConns() {
	ms.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(ms.active))
	for _, c := range ms.active {
		conns = append(conns, c)
	}
	ms.mu.Unlock()
	for _, c := range conns {
		c.Close(websocket.StatusInternalError, "killed")
	}
}

func (ms *mockServer) ConnCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.conns
}

func (ms *mockServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" && r.Header.Get("api-key") == "" {
		http.Error(w, "missing authentication", http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("model") == "" {
		http.Error(w, "missing model", http.StatusBadRequest)
		return
	}

	ms.mu.Lock()
	rejecting := ms.rejecting
	enter, gate := ms.handshakeEnter, ms.handshakeGate
	ms.mu.Unlock()
	if rejecting {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if gate != nil {
		enter <- struct{}{}
		<-gate
		if r.Context().Err() != nil {
			// The dialer gave up while parked; nothing to upgrade.
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		ms.t.Errorf("failed to upgrade to websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ms.mu.Lock()
	ms.conns++
	connIndex := ms.conns
	ms.active[connIndex] = conn
	drop := connIndex <= ms.dropConns
	scripted := append([]any(nil), ms.scripted...)
	ms.mu.Unlock()
	defer func() {
		ms.mu.Lock()
		delete(ms.active, connIndex)
		ms.mu.Unlock()
	}()

	created := map[string]any{
		"type":     "session.created",
		"event_id": "evt_mock_session_created",
		"session": map[string]any{
			"id":    "sess_mock_123",
			"model": r.URL.Query().Get("model"),
			"voice": "alloy",
		},
	}
	if err := ms.write(r.Context(), conn, created); err != nil {
		return
	}

	// First client frame is always the configuration frame.
	_, data, err := conn.Read(r.Context())
	if err != nil {
		return
	}
	ms.received <- data
	if drop {
		conn.Close(websocket.StatusInternalError, "scripted drop")
		return
	}

	for _, msg := range scripted {
		if err := ms.write(r.Context(), conn, msg); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		ms.received <- data
	}
}

func (ms *mockServer) write(ctx context.Context, conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		ms.t.Errorf("failed to marshal scripted frame: %v", err)
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// nextReceived returns the next client frame seen by the server, decoded.
func (ms *mockServer) nextReceived(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-ms.received:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("server received unparseable frame: %v", err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame to reach the server")
		return nil
	}
}

// mockConfig returns a config pointing at the mock server with fast
// reconnection timings suited to tests.
func mockConfig(serverURL string) Config {
	return Config{
		URL:                   serverURL,
		Credential:            Bearer("test-key"),
		Session:               DefaultSessionConfig("gpt-4o-realtime-preview"),
		DialTimeout:           2 * time.Second,
		InitialReconnectDelay: 10 * time.Millisecond,
		MaxReconnectDelay:     50 * time.Millisecond,
	}
}

// waitFor receives from ch or fails the test after a grace period.
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// expectQuiet asserts that nothing arrives on ch for a short window.
func expectQuiet[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(100 * time.Millisecond):
	}
}
