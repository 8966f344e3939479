package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"medquiz-engine/internal/domain"
)

// StatsUpdate is the payload of a single stats submission. SessionID is
// the idempotency key: the store must apply an update for a given session
// at most once, however many times it is submitted.
type StatsUpdate struct {
	SessionID        string           `json:"sessionId"`
	UserID           string           `json:"userId"`
	Score            int              `json:"score"`
	PointsEarned     int              `json:"pointsEarned"`
	TimeSpentSeconds int              `json:"timeSpentSeconds"`
	Stats            domain.UserStats `json:"stats"` // merged cumulative snapshot
}

// StatsStore abstracts the external stats service (in-memory, Redis, etc).
type StatsStore interface {
	// SubmitStats persists an update, idempotent on update.SessionID.
	SubmitStats(ctx context.Context, update StatsUpdate) error
	// GetStats returns a user's cumulative stats, or ErrNotFound.
	GetStats(ctx context.Context, userID string) (domain.UserStats, error)
	// ListStats returns stats for every known user, for ranking reads.
	ListStats(ctx context.Context) ([]domain.UserStats, error)
}

// MergeStats folds one completed session into cumulative user stats.
// Pure: it never touches storage and never mutates its inputs.
func MergeStats(old domain.UserStats, res domain.SessionResult) domain.UserStats {
	merged := domain.UserStats{UserID: res.UserID}
	merged.Points = old.Points + res.PointsEarned
	merged.Level = merged.Points/100 + 1
	merged.TotalQuizzes = old.TotalQuizzes + 1
	if old.TotalQuizzes == 0 {
		merged.Accuracy = res.Score
	} else {
		merged.Accuracy = int(math.Round(float64(old.Accuracy*old.TotalQuizzes+res.Score) / float64(merged.TotalQuizzes)))
	}
	gap := res.CompletedAt.Sub(old.LastQuizAt)
	if !old.LastQuizAt.IsZero() && gap >= 0 && gap <= 24*time.Hour {
		merged.Streak = old.Streak + 1
	} else {
		merged.Streak = 1
	}
	merged.LastQuizAt = res.CompletedAt
	return merged
}

// StatsAggregator applies completed sessions to user stats exactly once
// per session id and persists them through a StatsStore. A failed write is
// not retried inline: the merged stats are kept as a local optimistic copy
// flagged PendingSync and queued for Reconcile.
type StatsAggregator struct {
	store StatsStore

	mu      sync.Mutex
	applied map[string]struct{}         // session ids already folded in
	local   map[string]domain.UserStats // optimistic copies, authoritative while pending
	pending []StatsUpdate               // reconciliation queue, FIFO
}

func NewStatsAggregator(store StatsStore) *StatsAggregator {
	return &StatsAggregator{
		store:   store,
		applied: make(map[string]struct{}),
		local:   make(map[string]domain.UserStats),
	}
}

// Apply folds res into the owning user's stats and persists the update.
// Replaying the same session id is a no-op returning the current stats.
// On a persistence failure the returned stats are still valid (optimistic,
// PendingSync set) and the error wraps ErrPersistence.
func (a *StatsAggregator) Apply(ctx context.Context, res domain.SessionResult) (domain.UserStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.applied[res.SessionID]; dup {
		return a.local[res.UserID], nil
	}

	old, err := a.currentLocked(ctx, res.UserID)
	if err != nil {
		return domain.UserStats{}, err
	}
	merged := MergeStats(old, res)
	update := StatsUpdate{
		SessionID:        res.SessionID,
		UserID:           res.UserID,
		Score:            res.Score,
		PointsEarned:     res.PointsEarned,
		TimeSpentSeconds: res.TimeSpentSeconds,
		Stats:            merged,
	}

	a.applied[res.SessionID] = struct{}{}

	if err := a.store.SubmitStats(ctx, update); err != nil {
		merged.PendingSync = true
		a.local[res.UserID] = merged
		a.pending = append(a.pending, update)
		return merged, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	a.local[res.UserID] = merged
	// a queued update for this user now carries a stale snapshot; refresh
	// it so a later Reconcile cannot regress the store
	for i := range a.pending {
		if a.pending[i].UserID == res.UserID {
			a.pending[i].Stats = merged
		}
	}
	return merged, nil
}

// Reconcile drains the pending queue against the store, oldest first, and
// returns how many updates flushed. It stops at the first failure, leaving
// the remainder queued for the next call.
func (a *StatsAggregator) Reconcile(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	flushed := 0
	for len(a.pending) > 0 {
		update := a.pending[0]
		if err := a.store.SubmitStats(ctx, update); err != nil {
			return flushed, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		a.pending = a.pending[1:]
		flushed++
		if stats, ok := a.local[update.UserID]; ok && stats.LastQuizAt.Equal(update.Stats.LastQuizAt) {
			stats.PendingSync = false
			a.local[update.UserID] = stats
		}
	}
	return flushed, nil
}

// PendingCount reports how many updates await reconciliation.
func (a *StatsAggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Stats returns the freshest view of a user's stats: the local optimistic
// copy when one exists, otherwise the store's.
func (a *StatsAggregator) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentLocked(ctx, userID)
}

func (a *StatsAggregator) currentLocked(ctx context.Context, userID string) (domain.UserStats, error) {
	if stats, ok := a.local[userID]; ok {
		return stats, nil
	}
	stats, err := a.store.GetStats(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return stats, nil
}

// Snapshot merges the store's view with any fresher local copies, for
// leaderboard reads that should reflect pending-sync users too.
func (a *StatsAggregator) Snapshot(ctx context.Context) ([]domain.UserStats, error) {
	stored, err := a.store.ListStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]struct{}, len(stored))
	out := make([]domain.UserStats, 0, len(stored)+len(a.local))
	for _, s := range stored {
		if local, ok := a.local[s.UserID]; ok {
			s = local
		}
		seen[s.UserID] = struct{}{}
		out = append(out, s)
	}
	for id, s := range a.local {
		if _, ok := seen[id]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}
