package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Client manages one persistent WebSocket connection to a realtime
// conversational endpoint. It owns the connection lifecycle (including
// automatic reconnection with exponential backoff), demultiplexes inbound
// frames to registered callbacks, accumulates streamed transcripts, and
// buffers outbound frames accepted while the socket is down.
//
// The client is safe for concurrent use. Callbacks are executed on the read
// loop goroutine and must not block; hand work off to a channel or goroutine
// if it is slow.
type Client struct {
	cfg    Config
	logger Logger

	// mu guards connection state. gen is a connection generation counter:
	// every install, teardown, and caller disconnect bumps it, so read loops
	// and backoff timers belonging to a previous connection recognize they
	// are stale and stand down.
	mu          sync.Mutex
	state       ConnectionState
	sessionID   string
	conn        *websocket.Conn
	gen         uint64
	attempts    int
	dialing     bool
	retryTimer  *time.Timer
	session     SessionConfig
	queue       pendingQueue
	transcripts *transcriptAccumulator

	// writeMu serializes writes to the socket so interleaved goroutines
	// never corrupt a frame.
	writeMu sync.Mutex

	// Registered event handlers.
	handlerMu          sync.RWMutex
	onStateChange      func(old, new ConnectionState)
	onSessionCreated   func(SessionCreated)
	onAudioDelta       func(AudioDelta)
	onTranscript       func(Transcript)
	onInputTranscript  func(InputTranscript)
	onSpeechStarted    func(SpeechStarted)
	onSpeechStopped    func(SpeechStopped)
	onResponseComplete func(ResponseComplete)
	onProtocolError    func(ProtocolError)
	onDisconnected     func(Disconnected)
	onRawEvent         func(eventType string, raw []byte)
}

// NewClient validates the configuration and returns a client in the
// disconnected state. No network activity happens until Connect.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := ValidateSession(cfg.Session); err != nil {
		return nil, &ConfigError{Field: "Session", Message: err.Error()}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		state:       StateDisconnected,
		session:     cfg.Session,
		transcripts: newTranscriptAccumulator(),
	}, nil
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client is in the connected state.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// SessionID returns the identifier assigned by the remote side to the
// current session, or "" when no session is established. A reconnect yields
// a fresh session and therefore a fresh identifier.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Session returns a copy of the currently held session configuration,
// including any changes applied through UpdateSession.
func (c *Client) Session() SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Pending returns the number of frames buffered for transmission once the
// connection (re)opens.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Connect establishes the WebSocket connection and blocks until the socket
// is open and the session configuration frame has been transmitted. It
// returns nil immediately when already connected, and ErrConnectInProgress
// when another attempt (manual or automatic) is still underway. A Disconnect
// issued while the dial is in flight wins: the attempt is abandoned and
// Connect returns ErrConnectCancelled. A failed attempt leaves the client
// disconnected; Connect does not retry on its own, only unexpected closes
// after a successful open do.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateConnected:
		c.mu.Unlock()
		return nil
	case c.dialing || c.state == StateConnecting || c.state == StateReconnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	prev := c.state
	c.state = StateConnecting
	c.dialing = true
	c.attempts = 0
	startGen := c.gen
	c.mu.Unlock()
	c.notifyState(prev, StateConnecting)

	conn, err := c.dial(ctx)

	c.mu.Lock()
	if startGen != c.gen || !c.dialing {
		// Disconnect landed while the dial was in flight; it owns the state
		// transition and has already notified.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return ErrConnectCancelled
	}
	if err != nil {
		c.dialing = false
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notifyState(StateConnecting, StateDisconnected)
		return err
	}
	c.installConnLocked(conn)
	c.mu.Unlock()
	c.notifyState(StateConnecting, StateConnected)
	c.afterOpen(ctx, conn)
	return nil
}

// Disconnect closes the connection cleanly and cancels any scheduled
// reconnection. The reason is carried in the Disconnected notification; ""
// means "client disconnect". Buffered frames are retained for a later
// Connect. Safe to call in any state.
func (c *Client) Disconnect(reason string) error {
	if reason == "" {
		reason = "client disconnect"
	}
	c.mu.Lock()
	c.gen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	prev := c.state
	c.state = StateDisconnected
	c.sessionID = ""
	c.dialing = false
	c.attempts = 0
	c.transcripts.reset()
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if prev != StateDisconnected {
		c.notifyState(prev, StateDisconnected)
		c.emitDisconnected(Disconnected{Reason: reason, Terminal: false})
	}
	return nil
}

// dial opens the WebSocket within the configured dial timeout. The model is
// carried as a query parameter and credentials as handshake headers.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, &ConfigError{Field: "URL", Value: c.cfg.URL, Message: "invalid URL format"}
	}
	q := u.Query()
	q.Set("model", c.session.Model)
	u.RawQuery = q.Encode()

	h := http.Header{}
	for k, vals := range c.cfg.HandshakeHeaders {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set(protocolHeader, protocolVersion)
	c.cfg.Credential.apply(h)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrConnectTimeout
		}
		return nil, &ConnectionError{URL: u.String(), Operation: "dial", Cause: err}
	}
	conn.SetReadLimit(readLimit)
	c.logger.Info("ws_connected", map[string]any{"url": u.Redacted()})
	return conn, nil
}

// installConnLocked adopts a freshly dialed socket, moves to the connected
// state, and starts its read loop. Callers hold c.mu.
func (c *Client) installConnLocked(conn *websocket.Conn) {
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = StateConnected
	c.dialing = false
	c.attempts = 0
	go c.readLoop(gen, conn)
}

// afterOpen transmits the session configuration frame and then flushes the
// pending queue in arrival order. Runs once per successful open.
func (c *Client) afterOpen(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	payload := c.session.payload()
	frames := c.queue.drain()
	c.mu.Unlock()

	if err := c.writeFrame(ctx, conn, "session.update", map[string]any{
		"type":    "session.update",
		"session": payload,
	}); err != nil {
		c.logger.Error("session_configure_failed", map[string]any{"err": err.Error()})
	}
	for i, f := range frames {
		if err := c.write(ctx, conn, f.eventType, f.payload); err != nil {
			c.logger.Error("flush_failed", map[string]any{"type": f.eventType, "err": err.Error()})
			// The socket is gone; push the failed frame and everything behind
			// it back, in order, for the next open. Disconnect retains the
			// queue, so this holds across a caller disconnect too.
			c.mu.Lock()
			for _, rest := range frames[i:] {
				c.queue.push(rest.eventType, rest.payload)
			}
			c.mu.Unlock()
			return
		}
	}
	if n := len(frames); n > 0 {
		c.logger.Info("queue_flushed", map[string]any{"frames": n})
	}
}

// readLoop reads frames until the socket fails, then reports the loss. One
// read loop exists per connection generation.
func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			c.connLost(gen, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		c.dispatch(gen, data)
	}
}

// connLost handles an unexpected socket failure: it tears down the
// connection and either schedules a reconnection attempt or, when automatic
// reconnection is disabled, reports a terminal disconnect. Stale generations
// (caller already disconnected, or a newer socket installed) are ignored.
func (c *Client) connLost(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.sessionID = ""
	c.transcripts.reset()
	prev := c.state
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "connection lost")
	}
	reason := "connection lost"
	if cause != nil {
		reason = cause.Error()
	}
	c.logger.Warn("ws_disconnected", map[string]any{"reason": reason})

	if c.cfg.MaxReconnectAttempts < 0 {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		c.notifyState(prev, StateError)
		c.emitDisconnected(Disconnected{Reason: reason, Terminal: true})
		return
	}
	c.startReconnect(prev, reason)
}

// failConnection force-closes the active socket after a retryable remote
// error; the read loop observes the close and drives the reconnect path.
func (c *Client) failConnection(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()
	c.logger.Warn("connection_failing", map[string]any{"reason": reason})
	_ = conn.Close(websocket.StatusInternalError, "retryable error")
}

// write transmits one already-encoded frame, serialized with other writers
// and bounded by the write timeout.
func (c *Client) write(ctx context.Context, conn *websocket.Conn, eventType string, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &SendError{EventType: eventType, Cause: ErrSendTimeout}
		}
		return &SendError{EventType: eventType, Cause: err}
	}
	c.logger.Debug("frame_sent", map[string]any{"type": eventType})
	return nil
}

func (c *Client) writeFrame(ctx context.Context, conn *websocket.Conn, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return &SendError{EventType: eventType, Cause: err}
	}
	return c.write(ctx, conn, eventType, b)
}

// connectedConn returns the active socket, or ErrNotConnected when the
// client is in any other state.
func (c *Client) connectedConn() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// SendEvent transmits an arbitrary protocol frame. The payload must carry a
// "type" field. Unlike the typed operations, SendEvent accepts frames while
// the socket is down: they are buffered in order and flushed after the
// session configuration frame on the next (re)open.
func (c *Client) SendEvent(ctx context.Context, payload map[string]any) error {
	eventType, _ := payload["type"].(string)
	if eventType == "" {
		return &SendError{EventType: "unknown", Cause: errors.New("payload missing type field")}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return &SendError{EventType: eventType, Cause: err}
	}

	c.mu.Lock()
	if c.state == StateConnected && c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return c.write(ctx, conn, eventType, b)
	}
	c.queue.push(eventType, b)
	n := c.queue.len()
	c.mu.Unlock()
	c.logger.Debug("frame_queued", map[string]any{"type": eventType, "pending": n})
	return nil
}

// Event handler registration. Re-registering replaces the previous callback;
// registering nil removes it. Callbacks run on the read loop goroutine.

// OnStateChange registers a callback invoked on every connection state
// transition.
func (c *Client) OnStateChange(fn func(old, new ConnectionState)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onStateChange = fn
}

// OnSessionCreated registers a callback for session establishment events.
func (c *Client) OnSessionCreated(fn func(SessionCreated)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onSessionCreated = fn
}

// OnAudioDelta registers a callback for synthesized output audio chunks.
func (c *Client) OnAudioDelta(fn func(AudioDelta)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onAudioDelta = fn
}

// OnTranscript registers a callback for output-transcript updates, both
// incremental and final.
func (c *Client) OnTranscript(fn func(Transcript)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onTranscript = fn
}

// OnInputTranscript registers a callback for completed transcriptions of the
// caller's speech.
func (c *Client) OnInputTranscript(fn func(InputTranscript)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onInputTranscript = fn
}

// OnSpeechStarted registers a callback for voice-activity start events.
func (c *Client) OnSpeechStarted(fn func(SpeechStarted)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onSpeechStarted = fn
}

// OnSpeechStopped registers a callback for voice-activity stop events.
func (c *Client) OnSpeechStopped(fn func(SpeechStopped)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onSpeechStopped = fn
}

// OnResponseComplete registers a callback for response completion events.
func (c *Client) OnResponseComplete(fn func(ResponseComplete)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onResponseComplete = fn
}

// OnProtocolError registers a callback for classified remote errors and
// inbound parse failures.
func (c *Client) OnProtocolError(fn func(ProtocolError)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onProtocolError = fn
}

// OnDisconnected registers a callback for connection-loss notifications.
func (c *Client) OnDisconnected(fn func(Disconnected)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onDisconnected = fn
}

// OnRawEvent registers a callback receiving every inbound frame verbatim,
// before demultiplexing. Useful for logging and protocol debugging.
func (c *Client) OnRawEvent(fn func(eventType string, raw []byte)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onRawEvent = fn
}

func (c *Client) notifyState(old, new ConnectionState) {
	if old == new {
		return
	}
	c.logger.Info("state_change", map[string]any{"from": old.String(), "to": new.String()})
	c.handlerMu.RLock()
	fn := c.onStateChange
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(old, new)
	}
}

func (c *Client) emitDisconnected(d Disconnected) {
	c.handlerMu.RLock()
	fn := c.onDisconnected
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(d)
	}
}

func (c *Client) emitProtocolError(pe ProtocolError) {
	c.handlerMu.RLock()
	fn := c.onProtocolError
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(pe)
	}
}
