package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medquiz-engine/internal/domain"
)

func TestRankLeaderboardOrdering(t *testing.T) {
	now := time.Now()
	stats := []domain.UserStats{
		{UserID: "A", Points: 100, Accuracy: 90},
		{UserID: "B", Points: 100, Accuracy: 95},
		{UserID: "C", Points: 90, Accuracy: 99},
	}

	lb := RankLeaderboard(stats, now)
	require.Len(t, lb.Entries, 3)

	assert.Equal(t, "B", lb.Entries[0].UserID)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, "A", lb.Entries[1].UserID)
	assert.Equal(t, 2, lb.Entries[1].Rank)
	assert.Equal(t, "C", lb.Entries[2].UserID)
	assert.Equal(t, 3, lb.Entries[2].Rank)
	assert.Equal(t, now, lb.UpdatedAt)
}

func TestRankLeaderboardExactTieBreaksOnUserID(t *testing.T) {
	stats := []domain.UserStats{
		{UserID: "zed", Points: 50, Accuracy: 80},
		{UserID: "amy", Points: 50, Accuracy: 80},
	}

	lb := RankLeaderboard(stats, time.Now())

	assert.Equal(t, "amy", lb.Entries[0].UserID)
	assert.Equal(t, "zed", lb.Entries[1].UserID)
}

func TestRankLeaderboardDenseRanks(t *testing.T) {
	stats := []domain.UserStats{
		{UserID: "a", Points: 10, Accuracy: 50},
		{UserID: "b", Points: 10, Accuracy: 50},
		{UserID: "c", Points: 10, Accuracy: 50},
		{UserID: "d", Points: 5, Accuracy: 100},
	}

	lb := RankLeaderboard(stats, time.Now())

	seen := make(map[int]bool)
	for i, entry := range lb.Entries {
		assert.Equal(t, i+1, entry.Rank, "ranks must be sequential with no gaps")
		assert.False(t, seen[entry.Rank], "ranks must be unique")
		seen[entry.Rank] = true
	}
}

func TestRankLeaderboardIdempotent(t *testing.T) {
	now := time.Now()
	stats := []domain.UserStats{
		{UserID: "u1", Points: 70, Accuracy: 88},
		{UserID: "u2", Points: 70, Accuracy: 88},
		{UserID: "u3", Points: 120, Accuracy: 60},
	}

	first := RankLeaderboard(stats, now)
	second := RankLeaderboard(stats, now)

	assert.Equal(t, first, second)
}

func TestRankLeaderboardEmpty(t *testing.T) {
	lb := RankLeaderboard(nil, time.Now())
	assert.Empty(t, lb.Entries)
}

func TestRankLeaderboardDoesNotMutateInput(t *testing.T) {
	stats := []domain.UserStats{
		{UserID: "low", Points: 1},
		{UserID: "high", Points: 99},
	}

	RankLeaderboard(stats, time.Now())

	assert.Equal(t, "low", stats[0].UserID)
	assert.Equal(t, "high", stats[1].UserID)
}
