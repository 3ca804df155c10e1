package realtime

import "encoding/json"

// dispatch routes one inbound frame to the registered callbacks. A frame
// that does not parse produces a single non-retryable parse_error
// notification and is otherwise discarded; the connection state never
// changes because of a bad frame. Unknown frame types are forwarded to the
// raw-event callback only.
func (c *Client) dispatch(gen uint64, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		c.parseFailure(raw, err)
		return
	}

	c.handlerMu.RLock()
	rawFn := c.onRawEvent
	c.handlerMu.RUnlock()
	if rawFn != nil {
		rawFn(env.Type, raw)
	}

	switch env.Type {
	case "session.created", "session.updated":
		var e SessionCreated
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.mu.Lock()
		if gen == c.gen {
			c.sessionID = e.Session.ID
		}
		c.mu.Unlock()
		c.handlerMu.RLock()
		fn := c.onSessionCreated
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(e)
		}

	case "response.audio.delta":
		var e responseAudioDelta
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.handlerMu.RLock()
		fn := c.onAudioDelta
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(AudioDelta{ResponseID: e.ResponseID, ItemID: e.ItemID, DeltaBase64: e.Delta})
		}

	case "response.audio_transcript.delta":
		var e responseTranscriptDelta
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.mu.Lock()
		c.transcripts.add(e.ResponseID, e.ItemID, e.Delta)
		c.mu.Unlock()
		c.handlerMu.RLock()
		fn := c.onTranscript
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(Transcript{ResponseID: e.ResponseID, ItemID: e.ItemID, Text: e.Delta, IsFinal: false})
		}

	case "response.audio_transcript.done":
		var e responseTranscriptDone
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.mu.Lock()
		full := c.transcripts.finish(e.ResponseID, e.ItemID, e.Transcript)
		c.mu.Unlock()
		c.handlerMu.RLock()
		fn := c.onTranscript
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(Transcript{ResponseID: e.ResponseID, ItemID: e.ItemID, Text: full, IsFinal: true})
		}

	case "conversation.item.input_audio_transcription.completed":
		var e inputTranscriptionCompleted
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.handlerMu.RLock()
		fn := c.onInputTranscript
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(InputTranscript{ItemID: e.ItemID, Text: e.Transcript})
		}

	case "input_audio_buffer.speech_started":
		var e SpeechStarted
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.handlerMu.RLock()
		fn := c.onSpeechStarted
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(e)
		}

	case "input_audio_buffer.speech_stopped":
		var e SpeechStopped
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		c.handlerMu.RLock()
		fn := c.onSpeechStopped
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(e)
		}

	case "response.done":
		var e responseDone
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		// Cancelled or failed responses never see per-item transcript done
		// frames; release their buffers.
		c.mu.Lock()
		c.transcripts.dropResponse(e.Response.ID)
		c.mu.Unlock()
		c.handlerMu.RLock()
		fn := c.onResponseComplete
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(ResponseComplete{ResponseID: e.Response.ID, Status: e.Response.Status})
		}

	case "error":
		var e errorEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			c.parseFailure(raw, err)
			return
		}
		pe := ProtocolError{
			Type:      e.Error.Type,
			Code:      e.Error.Code,
			Message:   e.Error.Message,
			Param:     e.Error.Param,
			Retryable: Retryable(e.Error.Code, e.Error.Type),
		}
		c.logger.Warn("remote_error", map[string]any{
			"code": pe.Code, "type": pe.Type, "message": pe.Message, "retryable": pe.Retryable,
		})
		c.emitProtocolError(pe)
		if pe.Retryable {
			c.failConnection(gen, pe.Error())
		}

	default:
		c.logger.Debug("unknown_event", map[string]any{"type": env.Type})
	}
}

// parseFailure reports a frame that could not be decoded. Exactly one
// notification is produced per bad frame.
func (c *Client) parseFailure(raw []byte, err error) {
	msg := "malformed frame"
	if err != nil {
		msg = err.Error()
	}
	c.logger.Error("bad_event_json", map[string]any{"err": msg, "bytes": len(raw)})
	c.emitProtocolError(ProtocolError{
		Type:      "client_error",
		Code:      "parse_error",
		Message:   msg,
		Retryable: false,
	})
}
