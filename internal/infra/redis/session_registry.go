package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Sessions themselves stay in-process: the state machine and its timer
//     are live objects, not snapshots.
//   - Redis holds a per-user liveness marker so other instances (and
//     operators) can see who has an unfinished attempt.
//   - Single-active-session is still only enforced within this process;
//     cross-instance mutual exclusion would need the marker promoted to a
//     SETNX-style lock.
type SessionRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(userID), session.ID(), r.ttl).Err()
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
	if _, ok := r.sessions[userID]; !ok {
		return
	}
	delete(r.sessions, userID)
	_ = r.client.Del(context.Background(), r.key(userID)).Err()
}

func (r *SessionRegistry) key(userID string) string {
	return "session:user:" + userID
}
