package realtime

import (
	"net/http"
	"time"
)

// DefaultURL is the realtime endpoint dialed when Config.URL is empty. The
// model is selected via a query parameter on this URL.
const DefaultURL = "wss://api.openai.com/v1/realtime"

const (
	defaultDialTimeout  = 30 * time.Second
	defaultWriteTimeout = 15 * time.Second

	// Reconnection defaults: min(1s * 2^attempts, 30s), five attempts.
	defaultMaxReconnectAttempts  = 5
	defaultInitialReconnectDelay = time.Second
	defaultMaxReconnectDelay     = 30 * time.Second

	protocolHeader  = "OpenAI-Beta"
	protocolVersion = "realtime=v1"

	// Inbound audio deltas routinely exceed the transport's default read
	// limit, so raise it.
	readLimit = 1 << 23
)

// Credential represents an authentication method for the remote service.
// Implementations apply the appropriate headers to the WebSocket handshake.
type Credential interface{ apply(h http.Header) }

// Bearer implements Credential using an Authorization bearer token. This is
// the standard credential for the hosted realtime endpoint.
type Bearer string

func (b Bearer) apply(h http.Header) {
	if b != "" {
		h.Set("Authorization", "Bearer "+string(b))
	}
}

// APIKey implements Credential using an "api-key" header, for gateways that
// authenticate with a raw key instead of a bearer token.
type APIKey string

func (k APIKey) apply(h http.Header) {
	if k != "" {
		h.Set("api-key", string(k))
	}
}

// Config holds all options for creating a Client.
type Config struct {
	// URL is the WebSocket endpoint. Defaults to DefaultURL.
	URL string

	// Credential authenticates the WebSocket handshake.
	// Required: Yes
	Credential Credential

	// Session holds the session parameters sent to the remote side on every
	// (re)connect. Session.Model is also the model query parameter on the
	// dial URL and is required.
	Session SessionConfig

	// DialTimeout bounds connection establishment, including attempts made
	// by the reconnection manager. A hung attempt is forcibly closed and
	// Connect rejects with ErrConnectTimeout. Defaults to 30s.
	DialTimeout time.Duration

	// HandshakeHeaders adds custom headers to the WebSocket handshake,
	// e.g. tracing headers.
	HandshakeHeaders http.Header

	// MaxReconnectAttempts caps consecutive automatic reconnection attempts
	// after an unexpected close. Zero means the default (5); a negative
	// value disables automatic reconnection entirely.
	MaxReconnectAttempts int

	// InitialReconnectDelay is the first backoff delay. Defaults to 1s.
	InitialReconnectDelay time.Duration

	// MaxReconnectDelay caps the backoff delay. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// Logger receives operational events. If nil, nothing is logged.
	Logger Logger
}

// withDefaults returns a copy of cfg with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.InitialReconnectDelay == 0 {
		c.InitialReconnectDelay = defaultInitialReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	return c
}
