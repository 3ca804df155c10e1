// Package webhook exposes the HTTP surface of the bridge: the telephony
// provider's call webhook and media stream, plus a small read API over
// recorded calls.
package webhook

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/voxbridge/realtime/internal/bridge"
	"github.com/voxbridge/realtime/internal/store"
)

// Config holds the webhook server settings.
type Config struct {
	// AuthToken signs provider webhooks. Empty disables signature checks
	// (local development only).
	AuthToken string

	// PublicHost is the externally visible host of this server, used both
	// to reconstruct the signed webhook URL and to build the media stream
	// URL handed back to the provider.
	PublicHost string
}

// Server routes provider webhooks to the bridge.
type Server struct {
	cfg     Config
	store   *store.Store
	manager *bridge.Manager
	log     *zap.Logger
}

func NewServer(cfg Config, st *store.Store, manager *bridge.Manager, log *zap.Logger) *Server {
	return &Server{cfg: cfg, store: st, manager: manager, log: log}
}

// Router builds the chi router for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/calls", s.handleListCalls)
	r.Get("/calls/{id}/transcript", s.handleTranscript)
	r.Post("/telephony/incoming", s.handleIncoming)
	r.Get("/telephony/media", s.handleMedia)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active_calls": s.manager.Count()})
}

// callControl is the XML document answered to the provider's call webhook,
// pointing it at the media stream endpoint.
type callControl struct {
	XMLName xml.Name `xml:"Response"`
	Connect struct {
		Stream struct {
			URL string `xml:"url,attr"`
		} `xml:"Stream"`
	} `xml:"Connect"`
}

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}

	if s.cfg.AuthToken != "" {
		signature := r.Header.Get("X-Twilio-Signature")
		signedURL := fmt.Sprintf("https://%s%s", s.publicHost(r), r.URL.Path)
		if !validSignature(s.cfg.AuthToken, signature, signedURL, params) {
			s.log.Warn("webhook signature rejected", zap.String("remote", r.RemoteAddr))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	callSID := params["CallSid"]
	if callSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	call, err := s.store.CreateCall(r.Context(), callSID, params["From"], params["To"])
	if err != nil {
		s.log.Error("create call failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Info("incoming call",
		zap.String("call_id", call.ID),
		zap.String("provider_sid", callSID),
		zap.String("from", call.From))

	var doc callControl
	doc.Connect.Stream.URL = fmt.Sprintf("wss://%s/telephony/media?call=%s", s.publicHost(r), call.ID)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(doc)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call")
	if callID == "" {
		http.Error(w, "missing call", http.StatusBadRequest)
		return
	}
	call, err := s.store.GetCall(r.Context(), callID)
	if err != nil {
		http.Error(w, "unknown call", http.StatusNotFound)
		return
	}
	if call.Status != store.StatusInProgress {
		http.Error(w, "call not in progress", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("media upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	log := s.log.With(zap.String("call_id", callID))
	log.Info("media stream opened")

	var session *bridge.CallSession
	clean := false
	defer func() {
		if session == nil {
			return
		}
		status := store.StatusFailed
		if clean {
			status = store.StatusCompleted
		}
		s.manager.EndSession(callID, status)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			log.Info("media stream closed", zap.Error(err))
			return
		}
		var frame mediaFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("bad media frame", zap.Error(err))
			continue
		}

		switch frame.Event {
		case "connected":
			// Handshake preamble, nothing to do.
		case "start":
			if frame.Start == nil {
				log.Warn("start frame without start payload")
				continue
			}
			sink := &mediaStream{conn: conn, streamSID: frame.Start.StreamSID}
			session, err = s.manager.StartSession(r.Context(), callID, sink)
			if err != nil {
				log.Error("bridge session failed", zap.Error(err))
				conn.Close(websocket.StatusInternalError, "bridge unavailable")
				return
			}
		case "media":
			if session != nil && frame.Media != nil {
				session.HandleCallerAudio(frame.Media.Payload)
			}
		case "dtmf":
			if frame.DTMF != nil {
				log.Debug("dtmf", zap.String("digit", frame.DTMF.Digit))
			}
		case "mark":
			// Playback checkpoints are not tracked.
		case "stop":
			log.Info("media stream stopped by provider")
			clean = true
			return
		default:
			log.Debug("unknown media event", zap.String("event", frame.Event))
		}
	}
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	calls, err := s.store.ListCalls(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		s.log.Error("list calls failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []*store.Call{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetCall(r.Context(), id); err != nil {
		http.Error(w, "unknown call", http.StatusNotFound)
		return
	}
	entries, err := s.store.ListTranscripts(r.Context(), id)
	if err != nil {
		s.log.Error("list transcripts failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*store.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcript": entries})
}

func (s *Server) publicHost(r *http.Request) string {
	if s.cfg.PublicHost != "" {
		return s.cfg.PublicHost
	}
	return r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
