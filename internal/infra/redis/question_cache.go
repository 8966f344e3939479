package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"medquiz-engine/internal/domain"
	"medquiz-engine/internal/infra/memory"
)

// QuestionCache caches filtered question pools in Redis and falls back to
// a loader on cache miss. Pools are stored as:
//
//	SET questions:pool:{filterKey} <json array>  EX ttl
//
// and implement app.QuestionBank the same way the in-memory cache does.
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand // guarded: loads for different filter keys run concurrently
}

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchQuestions returns the first count questions of the filtered pool,
// or domain.ErrNotFound when the pool is too small.
func (c *QuestionCache) FetchQuestions(ctx context.Context, count int, difficulties []domain.Difficulty) ([]domain.Question, error) {
	pool, err := c.pool(ctx, difficulties)
	if err != nil {
		return nil, err
	}
	if len(pool) < count {
		return nil, fmt.Errorf("%w: requested %d questions, pool has %d", domain.ErrNotFound, count, len(pool))
	}
	out := make([]domain.Question, count)
	copy(out, pool[:count])
	return out, nil
}

// CountQuestions reports the filtered pool size.
func (c *QuestionCache) CountQuestions(ctx context.Context, difficulties []domain.Difficulty) (int, error) {
	pool, err := c.pool(ctx, difficulties)
	if err != nil {
		return 0, err
	}
	return len(pool), nil
}

func (c *QuestionCache) pool(ctx context.Context, difficulties []domain.Difficulty) ([]domain.Question, error) {
	key := c.poolKey(difficulties)

	if pool, ok := c.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := c.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := c.loader.LoadQuestions(ctx, difficulties)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(pool)
		if err != nil {
			return nil, fmt.Errorf("marshal question pool: %w", err)
		}
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (c *QuestionCache) poolKey(difficulties []domain.Difficulty) string {
	return "questions:pool:" + memory.FilterKey(difficulties)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
