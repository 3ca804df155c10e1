// Package bridge owns the call-control layer: one realtime client per live
// telephony call, wired to the provider media stream on one side and the
// conversation service on the other.
package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/voxbridge/realtime"
	"github.com/voxbridge/realtime/internal/store"
)

// Voice is the slice of the realtime client a call session drives. It is an
// interface so session tests can run against a fake without a socket.
type Voice interface {
	Connect(ctx context.Context) error
	Disconnect(reason string) error
	SendAudioBase64(ctx context.Context, audioB64 string) error
	CancelResponse(ctx context.Context) error
	CreateResponse(ctx context.Context) error
	AddConversationItem(ctx context.Context, item realtime.ConversationItem) error
	OnAudioDelta(fn func(realtime.AudioDelta))
	OnTranscript(fn func(realtime.Transcript))
	OnInputTranscript(fn func(realtime.InputTranscript))
	OnSpeechStarted(fn func(realtime.SpeechStarted))
	OnDisconnected(fn func(realtime.Disconnected))
}

// MediaSink is the provider-facing half: synthesized audio goes out through
// it, and Clear flushes whatever the provider has buffered for playback
// (barge-in).
type MediaSink interface {
	SendAudio(payloadB64 string) error
	Clear() error
}

// Recorder persists what was said. *store.Store satisfies it.
type Recorder interface {
	AppendTranscript(ctx context.Context, callID, role, text string, final bool) error
	FinishCall(ctx context.Context, callID, status string) error
}

// CallSession bridges one telephony call to one realtime session.
type CallSession struct {
	callID   string
	voice    Voice
	media    MediaSink
	rec      Recorder
	log      *zap.Logger
	greeting string

	endOnce sync.Once
	done    chan struct{}
}

// NewCallSession assembles a session; nothing happens until Start.
func NewCallSession(callID string, voice Voice, media MediaSink, rec Recorder, greeting string, log *zap.Logger) *CallSession {
	return &CallSession{
		callID:   callID,
		voice:    voice,
		media:    media,
		rec:      rec,
		log:      log.With(zap.String("call_id", callID)),
		greeting: greeting,
		done:     make(chan struct{}),
	}
}

// Start registers the event plumbing, connects the realtime client, and,
// when a greeting is configured, asks the assistant to speak first.
func (s *CallSession) Start(ctx context.Context) error {
	s.voice.OnAudioDelta(func(d realtime.AudioDelta) {
		if err := s.media.SendAudio(d.DeltaBase64); err != nil {
			s.log.Warn("media send failed", zap.Error(err))
		}
	})

	s.voice.OnSpeechStarted(func(realtime.SpeechStarted) {
		// Barge-in: stop generating and flush whatever the provider has
		// queued for playback, so the caller is not talked over.
		if err := s.voice.CancelResponse(context.Background()); err != nil {
			s.log.Warn("cancel response failed", zap.Error(err))
		}
		if err := s.media.Clear(); err != nil {
			s.log.Warn("media clear failed", zap.Error(err))
		}
		s.log.Debug("barge-in")
	})

	s.voice.OnTranscript(func(tr realtime.Transcript) {
		if !tr.IsFinal {
			return
		}
		if err := s.rec.AppendTranscript(context.Background(), s.callID, store.RoleAssistant, tr.Text, true); err != nil {
			s.log.Warn("persist assistant transcript failed", zap.Error(err))
		}
	})

	s.voice.OnInputTranscript(func(it realtime.InputTranscript) {
		if err := s.rec.AppendTranscript(context.Background(), s.callID, store.RoleCaller, it.Text, true); err != nil {
			s.log.Warn("persist caller transcript failed", zap.Error(err))
		}
	})

	s.voice.OnDisconnected(func(d realtime.Disconnected) {
		if !d.Terminal {
			return
		}
		s.log.Warn("realtime session lost for good", zap.String("reason", d.Reason))
		s.end(store.StatusFailed)
	})

	if err := s.voice.Connect(ctx); err != nil {
		s.finishRecord(store.StatusFailed)
		return err
	}
	s.log.Info("call bridged")

	if s.greeting != "" {
		if err := s.voice.AddConversationItem(ctx, realtime.ConversationItem{
			Type: "message",
			Role: "system",
			Content: []realtime.ContentPart{
				{Type: "input_text", Text: "Greet the caller: " + s.greeting},
			},
		}); err != nil {
			s.log.Warn("greeting item failed", zap.Error(err))
		} else if err := s.voice.CreateResponse(ctx); err != nil {
			s.log.Warn("greeting response failed", zap.Error(err))
		}
	}
	return nil
}

// HandleCallerAudio relays one media-stream payload (already base64) to the
// realtime session. Not-connected errors during reconnection windows are
// expected and only logged; telephony audio is realtime and stale chunks
// are not worth replaying.
func (s *CallSession) HandleCallerAudio(payloadB64 string) {
	if err := s.voice.SendAudioBase64(context.Background(), payloadB64); err != nil {
		s.log.Debug("caller audio dropped", zap.Error(err))
	}
}

// End tears the session down with the given terminal status. Idempotent;
// later calls are no-ops.
func (s *CallSession) End(status string) {
	s.end(status)
}

// Done is closed once the session has ended.
func (s *CallSession) Done() <-chan struct{} {
	return s.done
}

func (s *CallSession) end(status string) {
	s.endOnce.Do(func() {
		if err := s.voice.Disconnect("call ended"); err != nil {
			s.log.Warn("disconnect failed", zap.Error(err))
		}
		s.finishRecord(status)
		close(s.done)
		s.log.Info("call ended", zap.String("status", status))
	})
}

func (s *CallSession) finishRecord(status string) {
	if err := s.rec.FinishCall(context.Background(), s.callID, status); err != nil {
		s.log.Warn("finish call record failed", zap.Error(err))
	}
}
