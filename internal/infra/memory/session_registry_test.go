package memory

import (
	"errors"
	"testing"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	registry := NewSessionRegistry()
	session := app.NewSession("sess-1", "u1", domain.QuizConfig{Mode: domain.ModeQuick, QuestionCount: 5}, nil)

	if err := registry.Put("u1", session); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, ok := registry.Get("u1"); !ok || got.ID() != "sess-1" {
		t.Fatalf("expected session present")
	}

	registry.Delete("u1")
	if _, ok := registry.Get("u1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionRegistryRejectsSecondSession(t *testing.T) {
	registry := NewSessionRegistry()
	first := app.NewSession("sess-1", "u1", domain.QuizConfig{Mode: domain.ModeQuick, QuestionCount: 5}, nil)
	second := app.NewSession("sess-2", "u1", domain.QuizConfig{Mode: domain.ModeQuick, QuestionCount: 5}, nil)

	if err := registry.Put("u1", first); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := registry.Put("u1", second)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// other users are independent
	if err := registry.Put("u2", app.NewSession("sess-3", "u2", domain.QuizConfig{}, nil)); err != nil {
		t.Fatalf("put other user: %v", err)
	}
}
