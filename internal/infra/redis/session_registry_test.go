package redis

import (
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

func TestSessionRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewSessionRegistry(client, time.Minute)

	session := app.NewSession("sess-1", "u1", domain.QuizConfig{Mode: domain.ModeQuick, QuestionCount: 5}, nil)
	if err := registry.Put("u1", session); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("session:user:u1") {
		t.Fatalf("expected liveness key to be set")
	}

	registry.Delete("u1")
	if mr.Exists("session:user:u1") {
		t.Fatalf("expected liveness key to be removed")
	}
}

func TestSessionRegistryConflict(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewSessionRegistry(client, time.Minute)

	first := app.NewSession("sess-1", "u1", domain.QuizConfig{}, nil)
	second := app.NewSession("sess-2", "u1", domain.QuizConfig{}, nil)

	if err := registry.Put("u1", first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := registry.Put("u1", second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
