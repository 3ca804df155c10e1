package webhook

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Provider media-stream frames. The provider opens a WebSocket to the
// bridge and exchanges JSON frames: connected/start/media/stop/dtmf/mark
// inbound, media/clear/mark outbound. Audio payloads are base64 G.711.
type mediaFrame struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	DTMF *struct {
		Digit string `json:"digit"`
	} `json:"dtmf,omitempty"`
}

// mediaStream is the outbound half of one provider media WebSocket. It is
// the session's MediaSink: synthesized audio and clear commands go out
// through it, tagged with the provider's stream id.
type mediaStream struct {
	conn      *websocket.Conn
	streamSID string

	mu sync.Mutex
}

const mediaWriteTimeout = 5 * time.Second

func (m *mediaStream) SendAudio(payloadB64 string) error {
	return m.write(map[string]any{
		"event":     "media",
		"streamSid": m.streamSID,
		"media":     map[string]any{"payload": payloadB64},
	})
}

func (m *mediaStream) Clear() error {
	return m.write(map[string]any{
		"event":     "clear",
		"streamSid": m.streamSID,
	})
}

func (m *mediaStream) write(frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), mediaWriteTimeout)
	defer cancel()
	return m.conn.Write(ctx, websocket.MessageText, data)
}
