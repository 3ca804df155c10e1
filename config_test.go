package realtime

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Credential: Bearer("k"), Session: DefaultSessionConfig("m")}.withDefaults()

	if cfg.URL != DefaultURL {
		t.Errorf("URL = %q, want %q", cfg.URL, DefaultURL)
	}
	if cfg.DialTimeout != 30*time.Second {
		t.Errorf("DialTimeout = %v", cfg.DialTimeout)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d", cfg.MaxReconnectAttempts)
	}
	if cfg.InitialReconnectDelay != time.Second {
		t.Errorf("InitialReconnectDelay = %v", cfg.InitialReconnectDelay)
	}
	if cfg.MaxReconnectDelay != 30*time.Second {
		t.Errorf("MaxReconnectDelay = %v", cfg.MaxReconnectDelay)
	}
}

func TestConfigWithDefaultsPreservesDisabledReconnect(t *testing.T) {
	cfg := Config{MaxReconnectAttempts: -1}.withDefaults()
	if cfg.MaxReconnectAttempts != -1 {
		t.Errorf("MaxReconnectAttempts = %d, want -1 preserved", cfg.MaxReconnectAttempts)
	}
}

func TestCredentialHeaders(t *testing.T) {
	h := http.Header{}
	Bearer("secret").apply(h)
	if got := h.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}

	h = http.Header{}
	APIKey("raw-key").apply(h)
	if got := h.Get("api-key"); got != "raw-key" {
		t.Errorf("api-key = %q", got)
	}

	// Empty credentials leave the header set untouched.
	h = http.Header{}
	Bearer("").apply(h)
	APIKey("").apply(h)
	if len(h) != 0 {
		t.Errorf("empty credentials wrote headers: %v", h)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"Warning", LogLevelWarn},
		{"error", LogLevelError},
		{"off", LogLevelOff},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
