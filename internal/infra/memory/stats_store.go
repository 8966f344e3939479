package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

// StatsStore is an in-memory implementation of app.StatsStore. Submissions
// are idempotent on session id, mirroring the contract the engine expects
// from the external stats service.
type StatsStore struct {
	mu      sync.RWMutex
	stats   map[string]domain.UserStats
	applied map[string]struct{}
}

func NewStatsStore() *StatsStore {
	return &StatsStore{
		stats:   make(map[string]domain.UserStats),
		applied: make(map[string]struct{}),
	}
}

func (s *StatsStore) SubmitStats(_ context.Context, update app.StatsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.applied[update.SessionID]; dup {
		return nil
	}
	s.applied[update.SessionID] = struct{}{}
	stats := update.Stats
	stats.PendingSync = false
	s.stats[update.UserID] = stats
	return nil
}

func (s *StatsStore) GetStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[userID]
	if !ok {
		return domain.UserStats{}, fmt.Errorf("%w: no stats for user %s", domain.ErrNotFound, userID)
	}
	return stats, nil
}

func (s *StatsStore) ListStats(_ context.Context) ([]domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserStats, 0, len(s.stats))
	for _, stats := range s.stats {
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
