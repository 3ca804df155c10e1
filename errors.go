package realtime

import (
	"errors"
	"fmt"
	"net/url"
)

// Common error variables
var (
	// ErrNotConnected is returned by data-sending operations invoked while
	// the client is not in the connected state. It indicates a programming
	// error in the integration layer, not a transport failure.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectInProgress is returned by Connect when another Connect call
	// is still dialing.
	ErrConnectInProgress = errors.New("realtime: connection attempt already in progress")

	// ErrConnectTimeout is returned when a connection attempt exceeds the
	// configured dial timeout.
	ErrConnectTimeout = errors.New("realtime: connection attempt timed out")

	// ErrConnectCancelled is returned by Connect when Disconnect was called
	// while the dial was still in flight. The client stays disconnected.
	ErrConnectCancelled = errors.New("realtime: connection attempt cancelled by disconnect")

	// ErrInvalidConfig is returned when required configuration fields are missing.
	ErrInvalidConfig = errors.New("realtime: invalid configuration")

	// ErrConnectionFailed is returned when the WebSocket connection cannot be established.
	ErrConnectionFailed = errors.New("realtime: connection failed")

	// ErrSendTimeout is returned when writing a frame times out.
	ErrSendTimeout = errors.New("realtime: send timeout")
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string // The configuration field that is invalid
	Value   string // The invalid value (if safe to log)
	Message string // Detailed error message
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("realtime: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("realtime: invalid config field %q: %s", e.Field, e.Message)
}

// Is implements error matching for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ConnectionError represents a socket-level failure to open or keep the
// connection. It wraps the underlying network error with context.
type ConnectionError struct {
	URL       string // The WebSocket URL that failed
	Operation string // The operation that failed (e.g., "dial")
	Cause     error  // The underlying error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("realtime: %s failed for %q: %v", e.Operation, e.URL, e.Cause)
	}
	return fmt.Sprintf("realtime: %s failed for %q", e.Operation, e.URL)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// SendError represents a failure while writing a frame to the service.
type SendError struct {
	EventType string // The type of frame being sent
	Cause     error  // The underlying error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("realtime: failed to send %s frame: %v", e.EventType, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Cause
}

// IsTimeout returns true if the send failed due to the write timeout.
func (e *SendError) IsTimeout() bool {
	return errors.Is(e.Cause, ErrSendTimeout)
}

// ProtocolError is an error reported by the remote service, or a parse
// failure on an inbound frame (Code "parse_error", which is always
// client-side and never retryable). Retryable errors received while
// connected additionally trigger automatic reconnection.
type ProtocolError struct {
	Type      string // Error category, e.g. "server_error", "invalid_request_error"
	Code      string // Machine-readable code, e.g. "rate_limit_exceeded"
	Message   string // Human-readable description
	Param     string // Offending request parameter, if any
	Retryable bool   // Whether automatic reconnection is expected to help
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: protocol error %s (%s): %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("realtime: protocol error (%s): %s", e.Type, e.Message)
}

// retryableCodes is the fixed set of error codes for which reconnection is
// expected to succeed without caller intervention.
var retryableCodes = map[string]bool{
	"connection_error":    true,
	"timeout":             true,
	"server_error":        true,
	"internal_error":      true,
	"rate_limit_exceeded": true,
}

// retryableTypes is the fixed set of error types treated as retryable when
// the code alone is not conclusive.
var retryableTypes = map[string]bool{
	"server_error":     true,
	"rate_limit_error": true,
}

// Retryable reports whether a remote error with the given code and type is
// transient. Everything outside the fixed sets (malformed-request classes,
// auth failures, parse errors) is not retryable.
func Retryable(code, errType string) bool {
	return retryableCodes[code] || retryableTypes[errType]
}

// ValidateConfig performs configuration validation before dialing.
func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Field: "URL", Message: "cannot be empty"}
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return &ConfigError{Field: "URL", Value: cfg.URL, Message: "invalid URL format"}
	}
	if cfg.Session.Model == "" {
		return &ConfigError{Field: "Session.Model", Message: "cannot be empty"}
	}
	if cfg.Credential == nil {
		return &ConfigError{Field: "Credential", Message: "cannot be nil"}
	}
	if cfg.DialTimeout < 0 {
		return &ConfigError{Field: "DialTimeout", Value: cfg.DialTimeout.String(), Message: "cannot be negative"}
	}
	if cfg.InitialReconnectDelay < 0 {
		return &ConfigError{Field: "InitialReconnectDelay", Value: cfg.InitialReconnectDelay.String(), Message: "cannot be negative"}
	}
	if cfg.MaxReconnectDelay < 0 {
		return &ConfigError{Field: "MaxReconnectDelay", Value: cfg.MaxReconnectDelay.String(), Message: "cannot be negative"}
	}
	return nil
}
