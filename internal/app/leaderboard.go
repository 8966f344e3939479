package app

import (
	"sort"
	"time"

	"medquiz-engine/internal/domain"
)

// RankLeaderboard orders user stats into a leaderboard: points descending,
// ties broken by accuracy descending, then userId ascending. Ranks are
// dense and sequential (1..N), never shared, never gapped. The input slice
// is not mutated; recomputing on the same input yields the same ordering.
func RankLeaderboard(stats []domain.UserStats, now time.Time) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(stats))
	for _, s := range stats {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:   s.UserID,
			Points:   s.Points,
			Accuracy: s.Accuracy,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].Accuracy != entries[j].Accuracy {
			return entries[i].Accuracy > entries[j].Accuracy
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{Entries: entries, UpdatedAt: now}
}
