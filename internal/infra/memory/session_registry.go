package memory

import (
	"fmt"
	"sync"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
// It enforces the one-unfinished-session-per-user rule.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) Put(userID string, session *app.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[userID]; ok && existing.Status() != domain.StatusResults {
		return fmt.Errorf("%w: user %s has session %s in state %s", domain.ErrConflict, userID, existing.ID(), existing.Status())
	}
	r.sessions[userID] = session
	return nil
}

func (r *SessionRegistry) Get(userID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	return session, ok
}

func (r *SessionRegistry) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}
