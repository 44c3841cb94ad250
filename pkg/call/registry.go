package call

import "sync"

// Registry tracks active sessions by provider call id. Sessions register
// on transport open and deregister after persistence completes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. A session with the same call id is replaced;
// the provider never runs two streams for one call.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// Get returns the session for a call id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deregisters a session by call id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Terminate asks the named session to end. Returns false when no such
// session is active, which callers treat as already terminated.
func (r *Registry) Terminate(id, reason string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.Terminate(reason)
	return true
}
