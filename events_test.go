package realtime

import (
	"testing"
)

// newIdleClient returns a client that never dials; dispatch is exercised
// directly with raw frames.
func newIdleClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(mockConfig("ws://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestDispatchMalformedFrame(t *testing.T) {
	c := newIdleClient(t)
	protoErrs := make(chan ProtocolError, 4)
	c.OnProtocolError(func(pe ProtocolError) { protoErrs <- pe })

	c.dispatch(0, []byte(`{"type": "response.audio.delta", "delta":`))

	pe := waitFor(t, protoErrs, "parse error notification")
	if pe.Code != "parse_error" {
		t.Errorf("code = %q, want parse_error", pe.Code)
	}
	if pe.Retryable {
		t.Error("parse errors are client-side and never retryable")
	}
	expectQuiet(t, protoErrs, "second notification for one bad frame")
	if got := c.State(); got != StateDisconnected {
		t.Errorf("state changed on bad frame: %v", got)
	}
}

func TestDispatchFrameWithoutType(t *testing.T) {
	c := newIdleClient(t)
	protoErrs := make(chan ProtocolError, 4)
	c.OnProtocolError(func(pe ProtocolError) { protoErrs <- pe })

	c.dispatch(0, []byte(`{"delta": "abc"}`))

	if pe := waitFor(t, protoErrs, "parse error"); pe.Code != "parse_error" {
		t.Errorf("code = %q, want parse_error", pe.Code)
	}
}

func TestDispatchAudioDelta(t *testing.T) {
	c := newIdleClient(t)
	deltas := make(chan AudioDelta, 1)
	c.OnAudioDelta(func(d AudioDelta) { deltas <- d })

	c.dispatch(0, []byte(`{
		"type": "response.audio.delta",
		"response_id": "resp_1", "item_id": "item_1", "delta": "AAEC"
	}`))

	d := waitFor(t, deltas, "audio delta")
	if d.ResponseID != "resp_1" || d.ItemID != "item_1" || d.DeltaBase64 != "AAEC" {
		t.Errorf("unexpected delta: %+v", d)
	}
}

func TestDispatchTranscriptAccumulation(t *testing.T) {
	c := newIdleClient(t)
	transcripts := make(chan Transcript, 8)
	c.OnTranscript(func(tr Transcript) { transcripts <- tr })

	c.dispatch(0, []byte(`{"type": "response.audio_transcript.delta", "response_id": "r1", "item_id": "i1", "delta": "Hello, "}`))
	c.dispatch(0, []byte(`{"type": "response.audio_transcript.delta", "response_id": "r1", "item_id": "i1", "delta": "world."}`))
	c.dispatch(0, []byte(`{"type": "response.audio_transcript.done", "response_id": "r1", "item_id": "i1"}`))

	if tr := waitFor(t, transcripts, "first delta"); tr.Text != "Hello, " || tr.IsFinal {
		t.Errorf("first delta: %+v", tr)
	}
	if tr := waitFor(t, transcripts, "second delta"); tr.Text != "world." || tr.IsFinal {
		t.Errorf("second delta: %+v", tr)
	}
	final := waitFor(t, transcripts, "final transcript")
	if !final.IsFinal {
		t.Fatal("done frame should mark the transcript final")
	}
	if final.Text != "Hello, world." {
		t.Errorf("final text = %q, want the accumulated utterance", final.Text)
	}
}

func TestDispatchTranscriptInterleavedStreams(t *testing.T) {
	c := newIdleClient(t)
	transcripts := make(chan Transcript, 8)
	c.OnTranscript(func(tr Transcript) { transcripts <- tr })

	c.dispatch(0, []byte(`{"type": "response.audio_transcript.delta", "response_id": "r1", "item_id": "a", "delta": "alpha"}`))
	c.dispatch(0, []byte(`{"type": "response.audio_transcript.delta", "response_id": "r1", "item_id": "b", "delta": "beta"}`))
	c.dispatch(0, []byte(`{"type": "response.audio_transcript.done", "response_id": "r1", "item_id": "a"}`))

	waitFor(t, transcripts, "delta a")
	waitFor(t, transcripts, "delta b")
	final := waitFor(t, transcripts, "final for item a")
	if final.ItemID != "a" || final.Text != "alpha" {
		t.Errorf("streams mixed: %+v", final)
	}
}

func TestDispatchTranscriptDoneWithoutDeltas(t *testing.T) {
	c := newIdleClient(t)
	transcripts := make(chan Transcript, 1)
	c.OnTranscript(func(tr Transcript) { transcripts <- tr })

	// Some remotes only send the final transcript frame.
	c.dispatch(0, []byte(`{"type": "response.audio_transcript.done", "response_id": "r1", "item_id": "i1", "transcript": "Full sentence."}`))

	final := waitFor(t, transcripts, "final transcript")
	if final.Text != "Full sentence." || !final.IsFinal {
		t.Errorf("fallback transcript: %+v", final)
	}
}

func TestDispatchInputTranscript(t *testing.T) {
	c := newIdleClient(t)
	inputs := make(chan InputTranscript, 1)
	c.OnInputTranscript(func(it InputTranscript) { inputs <- it })

	c.dispatch(0, []byte(`{
		"type": "conversation.item.input_audio_transcription.completed",
		"item_id": "item_9", "transcript": "I need to book a table."
	}`))

	it := waitFor(t, inputs, "input transcript")
	if it.ItemID != "item_9" || it.Text != "I need to book a table." {
		t.Errorf("unexpected input transcript: %+v", it)
	}
}

func TestDispatchSpeechEvents(t *testing.T) {
	c := newIdleClient(t)
	started := make(chan SpeechStarted, 1)
	stopped := make(chan SpeechStopped, 1)
	c.OnSpeechStarted(func(e SpeechStarted) { started <- e })
	c.OnSpeechStopped(func(e SpeechStopped) { stopped <- e })

	c.dispatch(0, []byte(`{"type": "input_audio_buffer.speech_started", "item_id": "i1", "audio_start_ms": 120}`))
	c.dispatch(0, []byte(`{"type": "input_audio_buffer.speech_stopped", "item_id": "i1", "audio_end_ms": 2400}`))

	if e := waitFor(t, started, "speech started"); e.AudioStartMS != 120 {
		t.Errorf("audio_start_ms = %d", e.AudioStartMS)
	}
	if e := waitFor(t, stopped, "speech stopped"); e.AudioEndMS != 2400 {
		t.Errorf("audio_end_ms = %d", e.AudioEndMS)
	}
}

func TestDispatchResponseDone(t *testing.T) {
	c := newIdleClient(t)
	completes := make(chan ResponseComplete, 1)
	c.OnResponseComplete(func(rc ResponseComplete) { completes <- rc })

	c.dispatch(0, []byte(`{"type": "response.done", "response": {"id": "resp_1", "status": "cancelled"}}`))

	rc := waitFor(t, completes, "response complete")
	if rc.ResponseID != "resp_1" || rc.Status != "cancelled" {
		t.Errorf("status passed through wrong: %+v", rc)
	}
}

func TestDispatchNonRetryableError(t *testing.T) {
	c := newIdleClient(t)
	protoErrs := make(chan ProtocolError, 1)
	c.OnProtocolError(func(pe ProtocolError) { protoErrs <- pe })

	c.dispatch(0, []byte(`{
		"type": "error",
		"error": {"type": "invalid_request_error", "code": "invalid_value", "message": "bad voice", "param": "session.voice"}
	}`))

	pe := waitFor(t, protoErrs, "protocol error")
	if pe.Retryable {
		t.Error("invalid_request_error must not be retryable")
	}
	if pe.Param != "session.voice" {
		t.Errorf("param = %q", pe.Param)
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("non-retryable error changed state: %v", got)
	}
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	c := newIdleClient(t)
	protoErrs := make(chan ProtocolError, 1)
	c.OnProtocolError(func(pe ProtocolError) { protoErrs <- pe })
	raws := make(chan string, 1)
	c.OnRawEvent(func(eventType string, _ []byte) { raws <- eventType })

	c.dispatch(0, []byte(`{"type": "rate_limits.updated", "rate_limits": []}`))

	// Unknown types still reach the raw tap but produce no error.
	if got := waitFor(t, raws, "raw event"); got != "rate_limits.updated" {
		t.Errorf("raw event type = %q", got)
	}
	expectQuiet(t, protoErrs, "error for unknown event type")
}
