package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medquiz-engine/internal/domain"
)

// fakeStatsStore is an in-package StatsStore with a switchable failure
// mode, enough to drive the aggregator without real infrastructure.
type fakeStatsStore struct {
	mu      sync.Mutex
	fail    bool
	stats   map[string]domain.UserStats
	applied map[string]int // session id → submit count
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{
		stats:   make(map[string]domain.UserStats),
		applied: make(map[string]int),
	}
}

func (f *fakeStatsStore) SubmitStats(_ context.Context, update StatsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("stats service unreachable")
	}
	f.applied[update.SessionID]++
	if f.applied[update.SessionID] > 1 {
		return nil
	}
	f.stats[update.UserID] = update.Stats
	return nil
}

func (f *fakeStatsStore) GetStats(_ context.Context, userID string) (domain.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats, ok := f.stats[userID]
	if !ok {
		return domain.UserStats{}, domain.ErrNotFound
	}
	return stats, nil
}

func (f *fakeStatsStore) ListStats(_ context.Context) ([]domain.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.UserStats, 0, len(f.stats))
	for _, s := range f.stats {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStatsStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func resultFor(sessionID, userID string, score, points int, completedAt time.Time) domain.SessionResult {
	return domain.SessionResult{
		SessionID:     sessionID,
		UserID:        userID,
		Score:         score,
		PointsEarned:  points,
		CorrectCount:  score / 20,
		QuestionCount: 5,
		CompletedAt:   completedAt,
	}
}

func TestMergeStatsFirstSession(t *testing.T) {
	now := time.Now()
	merged := MergeStats(domain.UserStats{UserID: "u1"}, resultFor("s1", "u1", 60, 35, now))

	assert.Equal(t, 35, merged.Points)
	assert.Equal(t, 1, merged.Level)
	assert.Equal(t, 1, merged.TotalQuizzes)
	assert.Equal(t, 60, merged.Accuracy)
	assert.Equal(t, 1, merged.Streak)
	assert.Equal(t, now, merged.LastQuizAt)
}

func TestMergeStatsRunningAccuracy(t *testing.T) {
	old := domain.UserStats{UserID: "u1", Accuracy: 80, TotalQuizzes: 4}

	merged := MergeStats(old, resultFor("s5", "u1", 60, 35, time.Now()))

	// round((80*4 + 60) / 5) = 76
	assert.Equal(t, 76, merged.Accuracy)
	assert.Equal(t, 5, merged.TotalQuizzes)
}

func TestMergeStatsLevelDerivation(t *testing.T) {
	old := domain.UserStats{UserID: "u1", Points: 180, Level: 2, TotalQuizzes: 3}

	merged := MergeStats(old, resultFor("s4", "u1", 100, 70, time.Now()))

	assert.Equal(t, 250, merged.Points)
	assert.Equal(t, 3, merged.Level) // floor(250/100)+1
}

func TestMergeStatsStreak(t *testing.T) {
	completedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	within := domain.UserStats{UserID: "u1", Streak: 3, TotalQuizzes: 3, LastQuizAt: completedAt.Add(-23 * time.Hour)}
	merged := MergeStats(within, resultFor("s1", "u1", 40, 10, completedAt))
	assert.Equal(t, 4, merged.Streak)

	lapsed := domain.UserStats{UserID: "u1", Streak: 9, TotalQuizzes: 9, LastQuizAt: completedAt.Add(-25 * time.Hour)}
	merged = MergeStats(lapsed, resultFor("s2", "u1", 40, 10, completedAt))
	assert.Equal(t, 1, merged.Streak)
}

func TestMergeStatsPointsNeverDecrease(t *testing.T) {
	old := domain.UserStats{UserID: "u1", Points: 500, TotalQuizzes: 10}
	merged := MergeStats(old, resultFor("s11", "u1", 0, 0, time.Now()))
	assert.Equal(t, 500, merged.Points)
}

func TestAggregatorAppliesOncePerSession(t *testing.T) {
	store := newFakeStatsStore()
	agg := NewStatsAggregator(store)
	ctx := context.Background()
	res := resultFor("s1", "u1", 60, 35, time.Now())

	first, err := agg.Apply(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, 35, first.Points)
	assert.Equal(t, 1, first.TotalQuizzes)

	replay, err := agg.Apply(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, 35, replay.Points, "replay must not double-count points")
	assert.Equal(t, 1, replay.TotalQuizzes, "replay must not double-count quizzes")
}

func TestAggregatorQueuesFailedWrites(t *testing.T) {
	store := newFakeStatsStore()
	agg := NewStatsAggregator(store)
	ctx := context.Background()

	store.setFail(true)
	stats, err := agg.Apply(ctx, resultFor("s1", "u1", 60, 35, time.Now()))
	require.ErrorIs(t, err, domain.ErrPersistence)

	// graceful degradation: stats are still usable, just flagged
	assert.True(t, stats.PendingSync)
	assert.Equal(t, 35, stats.Points)
	assert.Equal(t, 1, agg.PendingCount())

	// the optimistic copy is what readers see while pending
	current, err := agg.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, current.PendingSync)

	store.setFail(false)
	flushed, err := agg.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)
	assert.Equal(t, 0, agg.PendingCount())

	current, err = agg.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, current.PendingSync)
}

func TestAggregatorReconcileStopsAtFirstFailure(t *testing.T) {
	store := newFakeStatsStore()
	agg := NewStatsAggregator(store)
	ctx := context.Background()
	base := time.Now()

	store.setFail(true)
	_, _ = agg.Apply(ctx, resultFor("s1", "u1", 60, 35, base))
	_, _ = agg.Apply(ctx, resultFor("s2", "u2", 80, 50, base.Add(time.Minute)))
	require.Equal(t, 2, agg.PendingCount())

	flushed, err := agg.Reconcile(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 0, flushed)
	assert.Equal(t, 2, agg.PendingCount())
}

func TestAggregatorChainsPendingSessions(t *testing.T) {
	store := newFakeStatsStore()
	agg := NewStatsAggregator(store)
	ctx := context.Background()
	base := time.Now()

	store.setFail(true)
	_, err := agg.Apply(ctx, resultFor("s1", "u1", 100, 70, base))
	require.ErrorIs(t, err, domain.ErrPersistence)

	// the second session merges on top of the optimistic copy
	store.setFail(false)
	stats, err := agg.Apply(ctx, resultFor("s2", "u1", 50, 20, base.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 90, stats.Points)
	assert.Equal(t, 2, stats.TotalQuizzes)
	assert.Equal(t, 75, stats.Accuracy)
	assert.Equal(t, 2, stats.Streak)
}

func TestSnapshotPrefersLocalCopies(t *testing.T) {
	store := newFakeStatsStore()
	agg := NewStatsAggregator(store)
	ctx := context.Background()

	_, err := agg.Apply(ctx, resultFor("s1", "u1", 60, 35, time.Now()))
	require.NoError(t, err)

	store.setFail(true)
	_, _ = agg.Apply(ctx, resultFor("s2", "u2", 80, 50, time.Now()))

	snapshot, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	byUser := make(map[string]domain.UserStats, len(snapshot))
	for _, s := range snapshot {
		byUser[s.UserID] = s
	}
	assert.False(t, byUser["u1"].PendingSync)
	assert.True(t, byUser["u2"].PendingSync)
	assert.Equal(t, 50, byUser["u2"].Points)
}
