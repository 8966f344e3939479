package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"medquiz-engine/internal/domain"
)

// QuestionLoader fetches a question pool from a backing store for a
// difficulty filter (empty filter = the whole pool).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, difficulties []domain.Difficulty) ([]domain.Question, error)
}

// QuestionCache caches filtered question pools with TTL to avoid repeated
// backing-store hits, and implements app.QuestionBank.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
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
	key := FilterKey(difficulties)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx, difficulties)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// FilterKey canonicalizes a difficulty filter into a stable cache key.
func FilterKey(difficulties []domain.Difficulty) string {
	if len(difficulties) == 0 {
		return "all"
	}
	parts := make([]string, len(difficulties))
	for i, d := range difficulties {
		parts[i] = string(d)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// StaticQuestionLoader serves a fixed question slice (tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, difficulties []domain.Difficulty) ([]domain.Question, error) {
	if len(difficulties) == 0 {
		return l.questions, nil
	}
	wanted := make(map[domain.Difficulty]struct{}, len(difficulties))
	for _, d := range difficulties {
		wanted[d] = struct{}{}
	}
	var out []domain.Question
	for _, q := range l.questions {
		if _, ok := wanted[q.Difficulty]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
