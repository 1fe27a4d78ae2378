package session

import "sync"

// Registry maps session ids to live sessions. All mutation happens under a
// single RWMutex; lookups take the read path. It is the only state shared
// across transport goroutines.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create generates a session with a fresh unguessable id and stores it.
// A removed id is never reissued; uuid collisions are regenerated away.
func (r *Registry) Create(kind Kind) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := newSession(kind)
	for r.sessions[s.ID] != nil {
		s = newSession(kind)
	}
	r.sessions[s.ID] = s
	return s
}

// Lookup returns the live session for id, if any.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and deletes the session for id. It is idempotent: removing
// an already-removed id is a no-op, which guards the race between a
// disconnect callback and an explicit termination for the same session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every live session. Used on process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
