package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"medquiz-engine/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(samplePool()),
	}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.FetchQuestions(context.Background(), 2, nil); err != nil {
		t.Fatalf("fetch questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.FetchQuestions(context.Background(), 2, nil); err != nil {
		t.Fatalf("fetch questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheSeparateKeysPerFilter(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(samplePool()),
	}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.CountQuestions(context.Background(), nil); err != nil {
		t.Fatalf("count all: %v", err)
	}
	if _, err := cache.CountQuestions(context.Background(), []domain.Difficulty{domain.DifficultyHard}); err != nil {
		t.Fatalf("count hard: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected one load per filter, got %d", loader.calls)
	}
}

func TestQuestionCacheInsufficientPool(t *testing.T) {
	cache := NewQuestionCache(NewStaticQuestionLoader(samplePool()), time.Minute)

	_, err := cache.FetchQuestions(context.Background(), 10, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestQuestionCacheDifficultyFilter(t *testing.T) {
	cache := NewQuestionCache(NewStaticQuestionLoader(samplePool()), time.Minute)

	count, err := cache.CountQuestions(context.Background(), []domain.Difficulty{domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 easy questions, got %d", count)
	}

	questions, err := cache.FetchQuestions(context.Background(), 2, []domain.Difficulty{domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, q := range questions {
		if q.Difficulty != domain.DifficultyEasy {
			t.Fatalf("expected only easy questions, got %s", q.Difficulty)
		}
	}
}

func TestFilterKeyStable(t *testing.T) {
	a := FilterKey([]domain.Difficulty{domain.DifficultyHard, domain.DifficultyEasy})
	b := FilterKey([]domain.Difficulty{domain.DifficultyEasy, domain.DifficultyHard})
	if a != b {
		t.Fatalf("filter key must not depend on order: %q vs %q", a, b)
	}
	if FilterKey(nil) != "all" {
		t.Fatalf("empty filter must map to the full pool key")
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, difficulties []domain.Difficulty) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, difficulties)
}

func samplePool() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "one", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: domain.DifficultyEasy, Category: "anatomy"},
		{ID: "q2", Prompt: "two", Options: []string{"a", "b"}, CorrectIndex: 1, Difficulty: domain.DifficultyEasy, Category: "anatomy"},
		{ID: "q3", Prompt: "three", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: domain.DifficultyMedium, Category: "pharm"},
		{ID: "q4", Prompt: "four", Options: []string{"a", "b"}, CorrectIndex: 1, Difficulty: domain.DifficultyHard, Category: "path"},
	}
}
