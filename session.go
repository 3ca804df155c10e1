package realtime

import (
	"context"
	"errors"
	"fmt"
)

// SessionConfig defines the session parameters held by the client and sent
// to the remote side on every (re)connect. The held copy is mutable through
// SetSystemPrompt and UpdateSession; changes survive reconnects.
type SessionConfig struct {
	// Model selects the conversation model. It is transmitted as a query
	// parameter on the connection URL, not in the session frame.
	Model string

	// Voice selects the synthesized voice, e.g. "alloy".
	Voice string

	// Instructions is the system-level prompt for the assistant.
	Instructions string

	// InputAudioFormat and OutputAudioFormat select the audio encodings.
	// Supported: "pcm16", "g711_ulaw", "g711_alaw".
	InputAudioFormat  string
	OutputAudioFormat string

	// TurnDetection configures server-side voice activity detection.
	TurnDetection *TurnDetection

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxOutputTokens caps response length. Zero means no explicit cap.
	MaxOutputTokens int

	// EnableInputTranscription turns on transcription of caller audio. The
	// transcription sub-object is only put on the wire when this is set.
	EnableInputTranscription bool

	// TranscriptionModel selects the transcription model; defaults to
	// "whisper-1" when transcription is enabled.
	TranscriptionModel string
}

// TurnDetection configures when the remote side decides a speaker has
// finished talking and a response should be generated.
type TurnDetection struct {
	Type              string  `json:"type"` // "server_vad"
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// DefaultSessionConfig returns session parameters suited to a telephony
// bridge: G.711 u-law in both directions and server-side turn detection.
func DefaultSessionConfig(model string) SessionConfig {
	return SessionConfig{
		Model:             model,
		Voice:             "alloy",
		InputAudioFormat:  "g711_ulaw",
		OutputAudioFormat: "g711_ulaw",
		TurnDetection: &TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
		Temperature: 0.8,
	}
}

type transcriptionPayload struct {
	Model string `json:"model,omitempty"`
}

// sessionPayload is the wire form of the session object, with the protocol's
// snake_case field names. Pointer fields keep unset values off the wire so a
// partial update never clobbers server-held defaults.
type sessionPayload struct {
	Instructions       *string               `json:"instructions,omitempty"`
	Voice              *string               `json:"voice,omitempty"`
	InputAudioFormat   *string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat  *string               `json:"output_audio_format,omitempty"`
	TurnDetection      *TurnDetection        `json:"turn_detection,omitempty"`
	Temperature        *float64              `json:"temperature,omitempty"`
	MaxOutputTokens    *int                  `json:"max_response_output_tokens,omitempty"`
	InputTranscription *transcriptionPayload `json:"input_audio_transcription,omitempty"`
}

// payload maps the held configuration to its full wire form.
func (s SessionConfig) payload() sessionPayload {
	var p sessionPayload
	if s.Instructions != "" {
		p.Instructions = Ptr(s.Instructions)
	}
	if s.Voice != "" {
		p.Voice = Ptr(s.Voice)
	}
	if s.InputAudioFormat != "" {
		p.InputAudioFormat = Ptr(s.InputAudioFormat)
	}
	if s.OutputAudioFormat != "" {
		p.OutputAudioFormat = Ptr(s.OutputAudioFormat)
	}
	if s.TurnDetection != nil {
		td := *s.TurnDetection
		p.TurnDetection = &td
	}
	if s.Temperature != 0 {
		p.Temperature = Ptr(s.Temperature)
	}
	if s.MaxOutputTokens != 0 {
		p.MaxOutputTokens = Ptr(s.MaxOutputTokens)
	}
	if s.EnableInputTranscription {
		p.InputTranscription = &transcriptionPayload{Model: s.transcriptionModel()}
	}
	return p
}

func (s SessionConfig) transcriptionModel() string {
	if s.TranscriptionModel != "" {
		return s.TranscriptionModel
	}
	return "whisper-1"
}

// SessionUpdate is a partial session change. Nil fields are left untouched,
// both in the held configuration and on the wire.
type SessionUpdate struct {
	Instructions             *string
	Voice                    *string
	Temperature              *float64
	MaxOutputTokens          *int
	TurnDetection            *TurnDetection
	EnableInputTranscription *bool
}

func (u SessionUpdate) empty() bool {
	return u.Instructions == nil && u.Voice == nil && u.Temperature == nil &&
		u.MaxOutputTokens == nil && u.TurnDetection == nil && u.EnableInputTranscription == nil
}

// payload maps only the changed fields to the wire form.
func (u SessionUpdate) payload(held SessionConfig) sessionPayload {
	var p sessionPayload
	p.Instructions = u.Instructions
	p.Voice = u.Voice
	p.Temperature = u.Temperature
	p.MaxOutputTokens = u.MaxOutputTokens
	if u.TurnDetection != nil {
		td := *u.TurnDetection
		p.TurnDetection = &td
	}
	if u.EnableInputTranscription != nil && *u.EnableInputTranscription {
		p.InputTranscription = &transcriptionPayload{Model: held.transcriptionModel()}
	}
	return p
}

// apply merges the partial update into the held configuration.
func (s *SessionConfig) apply(u SessionUpdate) {
	if u.Instructions != nil {
		s.Instructions = *u.Instructions
	}
	if u.Voice != nil {
		s.Voice = *u.Voice
	}
	if u.Temperature != nil {
		s.Temperature = *u.Temperature
	}
	if u.MaxOutputTokens != nil {
		s.MaxOutputTokens = *u.MaxOutputTokens
	}
	if u.TurnDetection != nil {
		td := *u.TurnDetection
		s.TurnDetection = &td
	}
	if u.EnableInputTranscription != nil {
		s.EnableInputTranscription = *u.EnableInputTranscription
	}
}

// UpdateSession merges a partial change into the held configuration, so a
// future reconnect uses it, and, when connected, immediately transmits a
// configuration-update frame carrying only the changed fields.
func (c *Client) UpdateSession(ctx context.Context, u SessionUpdate) error {
	if u.TurnDetection != nil {
		if err := validateTurnDetection(u.TurnDetection); err != nil {
			return &SendError{EventType: "session.update", Cause: err}
		}
	}
	c.mu.Lock()
	c.session.apply(u)
	held := c.session
	conn := c.conn
	connected := c.state == StateConnected && conn != nil
	c.mu.Unlock()
	if !connected || u.empty() {
		return nil
	}
	return c.writeFrame(ctx, conn, "session.update", map[string]any{
		"type":    "session.update",
		"session": u.payload(held),
	})
}

// SetSystemPrompt replaces the assistant's instructions, pushing the change
// to the remote side immediately when connected.
func (c *Client) SetSystemPrompt(ctx context.Context, instructions string) error {
	return c.UpdateSession(ctx, SessionUpdate{Instructions: Ptr(instructions)})
}

var validAudioFormats = map[string]bool{"pcm16": true, "g711_ulaw": true, "g711_alaw": true}

// ValidateSession performs validation on session configuration.
func ValidateSession(s SessionConfig) error {
	if s.InputAudioFormat != "" && !validAudioFormats[s.InputAudioFormat] {
		return fmt.Errorf("invalid input audio format %q", s.InputAudioFormat)
	}
	if s.OutputAudioFormat != "" && !validAudioFormats[s.OutputAudioFormat] {
		return fmt.Errorf("invalid output audio format %q", s.OutputAudioFormat)
	}
	if s.Temperature < 0 || s.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", s.Temperature)
	}
	if s.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be non-negative, got %d", s.MaxOutputTokens)
	}
	if s.TurnDetection != nil {
		if err := validateTurnDetection(s.TurnDetection); err != nil {
			return err
		}
	}
	return nil
}

func validateTurnDetection(td *TurnDetection) error {
	if td.Type == "" {
		return errors.New("turn detection type cannot be empty")
	}
	if td.Type != "server_vad" {
		return fmt.Errorf("invalid turn detection type %q, must be 'server_vad'", td.Type)
	}
	if td.Threshold < 0.0 || td.Threshold > 1.0 {
		return fmt.Errorf("turn detection threshold must be between 0.0 and 1.0, got %f", td.Threshold)
	}
	if td.PrefixPaddingMS < 0 {
		return fmt.Errorf("prefix padding must be non-negative, got %d", td.PrefixPaddingMS)
	}
	if td.SilenceDurationMS < 0 {
		return fmt.Errorf("silence duration must be non-negative, got %d", td.SilenceDurationMS)
	}
	return nil
}
