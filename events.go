package realtime

// envelope is used for initial JSON parsing to determine the frame type
// before unmarshaling into the specific event struct.
type envelope struct {
	Type string `json:"type"`
}

// Inbound wire frames. Only the fields the demultiplexer routes on are
// modeled; everything else a frame carries is still observable verbatim
// through OnRawEvent.

// SessionCreated is delivered when the remote side establishes or updates
// the session bound to this connection.
type SessionCreated struct {
	Type    string `json:"type"` // "session.created" or "session.updated"
	EventID string `json:"event_id,omitempty"`
	Session struct {
		ID        string `json:"id"`
		Model     string `json:"model,omitempty"`
		Voice     string `json:"voice,omitempty"`
		ExpiresAt int64  `json:"expires_at,omitempty"`
	} `json:"session"`
}

type responseAudioDelta struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"` // base64 audio
}

type responseTranscriptDelta struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

type responseTranscriptDone struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript,omitempty"`
}

type inputTranscriptionCompleted struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type responseDone struct {
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
}

type errorEvent struct {
	Error struct {
		Type    string `json:"type,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Param   string `json:"param,omitempty"`
	} `json:"error"`
}

// Semantic notifications surfaced to subscribers.

// AudioDelta carries one chunk of synthesized output audio. Chunks are
// forwarded as they arrive, never accumulated; the payload stays base64 so a
// telephony media stream can relay it without re-encoding.
type AudioDelta struct {
	ResponseID  string
	ItemID      string
	DeltaBase64 string
}

// Transcript carries output-transcript text for one (response, item) stream.
// While the stream is in flight, Text holds only the newest increment; on the
// final notification Text holds the full accumulated utterance and IsFinal is
// true.
type Transcript struct {
	ResponseID string
	ItemID     string
	Text       string
	IsFinal    bool
}

// SpeechStarted reports server-side voice activity detection: the caller
// began speaking. Integrations typically use this for barge-in, cancelling
// the in-flight response and flushing buffered playback.
type SpeechStarted struct {
	ItemID       string `json:"item_id"`
	AudioStartMS int    `json:"audio_start_ms"`
}

// SpeechStopped reports that the caller stopped speaking.
type SpeechStopped struct {
	ItemID     string `json:"item_id"`
	AudioEndMS int    `json:"audio_end_ms"`
}

// InputTranscript is the completed transcription of the caller's speech for
// one conversation item.
type InputTranscript struct {
	ItemID string
	Text   string
}

// ResponseComplete reports that the remote side finished a response. Status
// is carried verbatim ("completed", "cancelled", "incomplete", "failed").
type ResponseComplete struct {
	ResponseID string
	Status     string
}

// Disconnected reports loss of the session. Terminal is true when automatic
// reconnection was exhausted and the client has entered the error state;
// false for a clean caller-initiated disconnect.
type Disconnected struct {
	Reason   string
	Terminal bool
}

// ConversationItem is an item injected into the remote conversation via
// AddConversationItem.
type ConversationItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"` // "message"
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is one content element of a ConversationItem.
type ContentPart struct {
	Type  string `json:"type"` // "input_text", "text" or "input_audio"
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"` // base64
}
