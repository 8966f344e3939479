package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

const (
	appliedSetKey      = "stats:sessions"
	leaderboardZSetKey = "leaderboard:points"
)

// StatsStore persists user statistics in Redis and implements
// app.StatsStore. Layout:
//
//	HSET stats:user:{userID}  points level totalQuizzes accuracy streak lastQuizAt
//	SADD stats:sessions       {sessionID}   (idempotency guard)
//	ZADD leaderboard:points   {points} {userID}
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

// SubmitStats applies an update at most once per session id. The applied
// set is checked-and-marked with SADD, whose return value distinguishes a
// first submission from a replay.
func (s *StatsStore) SubmitStats(ctx context.Context, update app.StatsUpdate) error {
	added, err := s.client.SAdd(ctx, appliedSetKey, update.SessionID).Result()
	if err != nil {
		return fmt.Errorf("mark session applied: %w", err)
	}
	if added == 0 {
		// replay of an already-applied session
		return nil
	}

	stats := update.Stats
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.userKey(update.UserID), map[string]interface{}{
		"points":       stats.Points,
		"level":        stats.Level,
		"totalQuizzes": stats.TotalQuizzes,
		"accuracy":     stats.Accuracy,
		"streak":       stats.Streak,
		"lastQuizAt":   stats.LastQuizAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, leaderboardZSetKey, redis.Z{Score: float64(stats.Points), Member: update.UserID})
	if _, err := pipe.Exec(ctx); err != nil {
		// roll back the idempotency marker so a retry can land the write
		_ = s.client.SRem(ctx, appliedSetKey, update.SessionID).Err()
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

func (s *StatsStore) GetStats(ctx context.Context, userID string) (domain.UserStats, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("read stats: %w", err)
	}
	if len(fields) == 0 {
		return domain.UserStats{}, fmt.Errorf("%w: no stats for user %s", domain.ErrNotFound, userID)
	}
	return statsFromFields(userID, fields), nil
}

func (s *StatsStore) ListStats(ctx context.Context) ([]domain.UserStats, error) {
	userIDs, err := s.client.ZRevRange(ctx, leaderboardZSetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.UserStats, 0, len(userIDs))
	for _, userID := range userIDs {
		stats, err := s.GetStats(ctx, userID)
		if err != nil {
			continue // member without a hash: skip rather than fail the whole read
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *StatsStore) userKey(userID string) string {
	return "stats:user:" + userID
}

func statsFromFields(userID string, fields map[string]string) domain.UserStats {
	stats := domain.UserStats{UserID: userID}
	stats.Points = atoi(fields["points"])
	stats.Level = atoi(fields["level"])
	stats.TotalQuizzes = atoi(fields["totalQuizzes"])
	stats.Accuracy = atoi(fields["accuracy"])
	stats.Streak = atoi(fields["streak"])
	if raw := fields["lastQuizAt"]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			stats.LastQuizAt = t
		}
	}
	return stats
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}
