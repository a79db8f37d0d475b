package app

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

// Session is the per-chat aggregate of call handle, transport and media
// binding. mu guards all fields and serializes every operation for the
// chat: a stop racing an in-flight join waits for the join to resolve.
type Session struct {
	chat domain.ChatID

	mu      sync.Mutex
	state   domain.SessionState
	removed bool

	call      *domain.CallHandle
	transport core.MediaTransport
	source    core.MediaSource
	track     webrtc.TrackLocal
}

func newSession(chat domain.ChatID) *Session {
	return &Session{chat: chat, state: domain.StateIdle}
}

func (s *Session) Chat() domain.ChatID { return s.chat }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the join handshake has completed and media
// is bound.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.removed && s.state == domain.StateActive
}

// Finished reports whether the bound readable has been fully consumed.
// ok is false when there is no media binding for this chat.
func (s *Session) Finished() (finished, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.source == nil {
		return false, false
	}
	return s.source.Finished(), true
}

// Pause suspends the media source.
func (s *Session) Pause() domain.ControlResult {
	return s.setPaused(true)
}

// Resume unsuspends the media source.
func (s *Session) Resume() domain.ControlResult {
	return s.setPaused(false)
}

func (s *Session) setPaused(paused bool) domain.ControlResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.source == nil {
		return domain.ControlAbsent
	}
	if s.source.Paused() == paused {
		return domain.ControlNoop
	}
	s.source.SetPaused(paused)
	return domain.ControlChanged
}

// Mute silences the outgoing track without touching playback position.
func (s *Session) Mute() domain.ControlResult {
	return s.setMuted(true)
}

// Unmute reverses Mute.
func (s *Session) Unmute() domain.ControlResult {
	return s.setMuted(false)
}

func (s *Session) setMuted(muted bool) domain.ControlResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.source == nil {
		return domain.ControlAbsent
	}
	if s.source.Muted() == muted {
		return domain.ControlNoop
	}
	s.source.SetMuted(muted)
	return domain.ControlChanged
}

// CallHandle returns the remote call descriptor, if the session owns
// one.
func (s *Session) CallHandle() (domain.CallHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.call == nil {
		return domain.CallHandle{}, false
	}
	return *s.call, true
}
