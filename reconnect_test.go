package realtime

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	initial := time.Second
	max := 30 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
		{63, 30 * time.Second}, // shift overflow guarded
	}
	for _, tt := range tests {
		if got := backoffDelay(initial, max, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	ms := newMockServer(t)
	defer ms.Close()
	ms.DropConnections(1)

	c, _ := NewClient(mockConfig(ms.URL()))
	states := make(chan ConnectionState, 16)
	c.OnStateChange(func(_, next ConnectionState) { states <- next })
	disconnected := make(chan Disconnected, 4)
	c.OnDisconnected(func(d Disconnected) { disconnected <- d })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect("")

	// connecting, connected, then the drop: reconnecting, connected again.
	wantStates := []ConnectionState{StateConnecting, StateConnected, StateReconnecting, StateConnected}
	for _, want := range wantStates {
		if got := waitFor(t, states, "state change"); got != want {
			t.Fatalf("state = %v, want %v", got, want)
		}
	}

	d := waitFor(t, disconnected, "disconnect notification")
	if d.Terminal {
		t.Error("drop with retries remaining should not be terminal")
	}
	if got := ms.ConnCount(); got != 2 {
		t.Errorf("connections = %d, want 2", got)
	}

	// The replacement connection is configured like the first one.
	if frame := ms.nextReceived(t); frame["type"] != "session.update" {
		t.Errorf("first frame on old conn = %v", frame["type"])
	}
	if frame := ms.nextReceived(t); frame["type"] != "session.update" {
		t.Errorf("first frame on new conn = %v", frame["type"])
	}
}

func TestReconnectExhaustionIsTerminal(t *testing.T) {
	ms := newMockServer(t)
	defer ms.Close()

	cfg := mockConfig(ms.URL())
	cfg.MaxReconnectAttempts = 2
	c, _ := NewClient(cfg)

	disconnected := make(chan Disconnected, 4)
	c.OnDisconnected(func(d Disconnected) { disconnected <- d })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Partition the endpoint: kill the live socket and refuse every redial.
	ms.RejectNewConns()
	ms.CloseActiveConns()

	// First the non-terminal loss notification, then, after both retries
	// fail, exactly one terminal notification.
	d := waitFor(t, disconnected, "loss notification")
	if d.Terminal {
		t.Fatal("first loss notification should not be terminal")
	}
	d = waitFor(t, disconnected, "terminal notification")
	if !d.Terminal {
		t.Fatalf("expected terminal notification, got %+v", d)
	}
	expectQuiet(t, disconnected, "extra disconnect notification")

	if got := c.State(); got != StateError {
		t.Errorf("state after exhaustion = %v, want %v", got, StateError)
	}

	// Manual Connect out of the error state is allowed (and fails here
	// because the endpoint is gone, leaving the client disconnected).
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect against a dead endpoint should fail")
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("state after failed manual connect = %v, want %v", got, StateDisconnected)
	}
}

func TestReconnectDisabled(t *testing.T) {
	ms := newMockServer(t)
	defer ms.Close()
	ms.DropConnections(1)

	cfg := mockConfig(ms.URL())
	cfg.MaxReconnectAttempts = -1
	c, _ := NewClient(cfg)

	disconnected := make(chan Disconnected, 4)
	c.OnDisconnected(func(d Disconnected) { disconnected <- d })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	d := waitFor(t, disconnected, "terminal notification")
	if !d.Terminal {
		t.Error("loss with reconnection disabled should be terminal")
	}
	if got := c.State(); got != StateError {
		t.Errorf("state = %v, want %v", got, StateError)
	}
	if got := ms.ConnCount(); got != 1 {
		t.Errorf("connections = %d, want 1 (no redial)", got)
	}
}

func TestDisconnectCancelsScheduledReconnect(t *testing.T) {
	ms := newMockServer(t)
	ms.DropConnections(1)

	cfg := mockConfig(ms.URL())
	cfg.InitialReconnectDelay = 50 * time.Millisecond
	c, _ := NewClient(cfg)

	states := make(chan ConnectionState, 16)
	c.OnStateChange(func(_, next ConnectionState) { states <- next })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for {
		if s := waitFor(t, states, "reconnecting state"); s == StateReconnecting {
			break
		}
	}

	if err := c.Disconnect(""); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s := waitFor(t, states, "disconnected state"); s != StateDisconnected {
		t.Fatalf("state = %v, want %v", s, StateDisconnected)
	}

	// The armed retry must not fire after Disconnect.
	time.Sleep(150 * time.Millisecond)
	if got := ms.ConnCount(); got != 1 {
		t.Errorf("connections = %d, want 1 (retry cancelled)", got)
	}
	ms.Close()
}
