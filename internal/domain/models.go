package domain

import "time"

// Difficulty buckets questions and drives per-question point values.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty buckets.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Mode selects how a quiz session is configured.
type Mode string

const (
	ModeQuick  Mode = "quick"
	ModeTimed  Mode = "timed"
	ModeCustom Mode = "custom"
)

// SessionStatus is the lifecycle state of a quiz session.
// Transitions only move forward: setup → starting → active → results.
type SessionStatus string

const (
	StatusSetup    SessionStatus = "setup"
	StatusStarting SessionStatus = "starting"
	StatusActive   SessionStatus = "active"
	StatusResults  SessionStatus = "results"
)

// Question models a single-correct-answer MCQ. Immutable once fetched.
type Question struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correctIndex"`
	Difficulty   Difficulty `json:"difficulty"`
	Category     string     `json:"category"`
}

// QuizConfig is a validated session configuration produced by the
// configurator from a mode plus optional user overrides.
type QuizConfig struct {
	Mode             Mode         `json:"mode"`
	QuestionCount    int          `json:"questionCount"`
	TimeLimitSeconds int          `json:"timeLimitSeconds,omitempty"` // 0 = no limit
	Difficulties     []Difficulty `json:"difficulties,omitempty"`     // empty = all
}

// Timed reports whether the config carries a countdown.
func (c QuizConfig) Timed() bool {
	return c.TimeLimitSeconds > 0
}

// SessionResult is the frozen outcome of a completed session, the unit
// handed to the stats aggregator. SessionID doubles as the idempotency key.
type SessionResult struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	Score            int       `json:"score"`        // 0..100
	PointsEarned     int       `json:"pointsEarned"` // difficulty-weighted
	CorrectCount     int       `json:"correctCount"`
	QuestionCount    int       `json:"questionCount"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	CompletedAt      time.Time `json:"completedAt"`
}

// UserStats is a user's cumulative statistics. Points never decrease;
// Level is derived from Points; Accuracy is a running average over all
// completed sessions.
type UserStats struct {
	UserID       string    `json:"userId"`
	Points       int       `json:"points"`
	Level        int       `json:"level"`
	TotalQuizzes int       `json:"totalQuizzes"`
	Accuracy     int       `json:"accuracy"` // 0..100
	Streak       int       `json:"streak"`   // consecutive-day counter
	LastQuizAt   time.Time `json:"lastQuizAt"`
	PendingSync  bool      `json:"pendingSync,omitempty"` // true while a write awaits reconciliation
}

// LeaderboardEntry is one row of the ranked view over UserStats.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"userId"`
	Points   int    `json:"points"`
	Accuracy int    `json:"accuracy"`
}

// Leaderboard is the recomputed-on-demand ranking snapshot.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
