package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// VoiceFactory builds a fresh realtime client for one call.
type VoiceFactory func() (Voice, error)

// Manager tracks the live call sessions and builds new ones.
type Manager struct {
	newVoice VoiceFactory
	rec      Recorder
	greeting string
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*CallSession
}

// NewManager returns an empty manager using the factory for each call's
// realtime client.
func NewManager(newVoice VoiceFactory, rec Recorder, greeting string, log *zap.Logger) *Manager {
	return &Manager{
		newVoice: newVoice,
		rec:      rec,
		greeting: greeting,
		log:      log,
		sessions: make(map[string]*CallSession),
	}
}

// StartSession builds, registers, and starts a session for the call. One
// session per call id; a second start for the same id is rejected.
func (m *Manager) StartSession(ctx context.Context, callID string, media MediaSink) (*CallSession, error) {
	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("call %s already has a session", callID)
	}
	m.mu.Unlock()

	voice, err := m.newVoice()
	if err != nil {
		return nil, fmt.Errorf("build realtime client: %w", err)
	}
	session := NewCallSession(callID, voice, media, m.rec, m.greeting, m.log)

	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("call %s already has a session", callID)
	}
	m.sessions[callID] = session
	m.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		m.remove(callID)
		return nil, err
	}
	return session, nil
}

// Get returns the session for a call, if one is live.
func (m *Manager) Get(callID string) (*CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	return s, ok
}

// EndSession ends and forgets the call's session. Unknown ids are ignored.
func (m *Manager) EndSession(callID, status string) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	delete(m.sessions, callID)
	m.mu.Unlock()
	if ok {
		s.End(status)
	}
}

// Shutdown ends every live session, used on process exit.
func (m *Manager) Shutdown(status string) {
	m.mu.Lock()
	sessions := make([]*CallSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*CallSession)
	m.mu.Unlock()
	for _, s := range sessions {
		s.End(status)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(callID string) {
	m.mu.Lock()
	delete(m.sessions, callID)
	m.mu.Unlock()
}
