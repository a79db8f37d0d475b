package app

import (
	"sync"

	"github.com/avoran/gramstream/internal/domain"
)

// Directory is the authoritative mapping from chat to active session.
// It is the only shared mutable structure of the engine; everything
// inside a Session is guarded by that session's own lock.
type Directory struct {
	mu       sync.RWMutex
	sessions map[domain.ChatID]*Session
}

func NewDirectory() *Directory {
	return &Directory{sessions: make(map[domain.ChatID]*Session)}
}

func (d *Directory) Get(chat domain.ChatID) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[chat]
	return s, ok
}

// GetOrCreate returns the session for chat, creating it when absent.
// The second return value reports whether this call created it.
func (d *Directory) GetOrCreate(chat domain.ChatID) (*Session, bool) {
	d.mu.RLock()
	s, ok := d.sessions[chat]
	d.mu.RUnlock()
	if ok {
		return s, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok = d.sessions[chat]; ok {
		return s, false
	}
	s = newSession(chat)
	d.sessions[chat] = s
	return s, true
}

func (d *Directory) Remove(chat domain.ChatID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, chat)
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// Chats snapshots the tracked chat ids.
func (d *Directory) Chats() []domain.ChatID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.ChatID, 0, len(d.sessions))
	for chat := range d.sessions {
		out = append(out, chat)
	}
	return out
}
