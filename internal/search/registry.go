package search

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry tracks live sessions for the HTTP service.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	fetcher  Fetcher
	opts     []SessionOption
}

// NewRegistry creates a registry whose sessions share fetcher and opts.
func NewRegistry(fetcher Fetcher, opts ...SessionOption) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		fetcher:  fetcher,
		opts:     opts,
	}
}

// Create starts a new session with a random id.
func (r *Registry) Create() *Session {
	s := NewSession(uuid.New().String(), r.fetcher, r.opts...)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastUsed()) > maxIdle {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Debug("swept idle sessions", zap.Int("removed", removed), zap.Int("remaining", len(r.sessions)))
	}
	return removed
}
