package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medquiz-engine/internal/domain"
)

// defaultPrepDelay is the cosmetic pause between starting and active,
// giving clients a moment to render the transition. No semantic weight.
const defaultPrepDelay = 3 * time.Second

// QuestionBank supplies the question pool (static, Postgres, cached).
type QuestionBank interface {
	// FetchQuestions returns exactly count questions matching the filter,
	// or ErrNotFound when the pool cannot supply that many.
	FetchQuestions(ctx context.Context, count int, difficulties []domain.Difficulty) ([]domain.Question, error)
	// CountQuestions returns the size of the pool matching the filter.
	CountQuestions(ctx context.Context, difficulties []domain.Difficulty) (int, error)
}

// SessionRegistry tracks the at-most-one unfinished session per user.
type SessionRegistry interface {
	// Put registers a session for its user, failing with ErrConflict when
	// an unfinished session is already registered.
	Put(userID string, session *Session) error
	Get(userID string) (*Session, bool)
	Delete(userID string)
}

// Options tune the service; the zero value gives production defaults.
type Options struct {
	PrepDelay    time.Duration    // starting → active pause; <0 disables
	TickInterval time.Duration    // countdown granularity
	Clock        func() time.Time // injectable for deterministic tests
	NewID        func() string    // session id generator
	Logger       *slog.Logger
}

// QuizService wires the configurator, session state machine, scorer and
// stats aggregator into the engine's public use cases.
type QuizService struct {
	bank      QuestionBank
	registry  SessionRegistry
	stats     *StatsAggregator
	prepDelay time.Duration
	interval  time.Duration
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

func NewQuizService(bank QuestionBank, registry SessionRegistry, stats *StatsAggregator) *QuizService {
	return NewQuizServiceWithOptions(bank, registry, stats, Options{})
}

// NewQuizServiceWithOptions is the fully-injectable constructor used by
// tests and by callers that need a custom prep delay or clock.
func NewQuizServiceWithOptions(bank QuestionBank, registry SessionRegistry, stats *StatsAggregator, opts Options) *QuizService {
	s := &QuizService{
		bank:      bank,
		registry:  registry,
		stats:     stats,
		prepDelay: opts.PrepDelay,
		interval:  opts.TickInterval,
		now:       opts.Clock,
		newID:     opts.NewID,
		logger:    opts.Logger,
	}
	if s.prepDelay == 0 {
		s.prepDelay = defaultPrepDelay
	}
	if s.prepDelay < 0 {
		s.prepDelay = 0
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// StartSession validates the request, resolves questions, and registers a
// fresh session for userID. The session enters starting immediately and
// flips to active after the prep delay. Fails with ErrValidation on a bad
// request, ErrNotFound when the bank cannot supply the questions, and
// ErrConflict when the user already has an unfinished session.
func (s *QuizService) StartSession(ctx context.Context, userID string, req ConfigRequest) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	poolSize, err := s.bank.CountQuestions(ctx, req.Difficulties)
	if err != nil {
		return nil, err
	}
	cfg, err := BuildConfig(req, poolSize)
	if err != nil {
		return nil, err
	}
	questions, err := s.bank.FetchQuestions(ctx, cfg.QuestionCount, cfg.Difficulties)
	if err != nil {
		return nil, err
	}

	session := newSession(s.newID(), userID, cfg, questions, s.now)
	session.tickInterval = s.interval
	session.onComplete = func(res domain.SessionResult) {
		s.registry.Delete(userID)
		s.applyStats(res)
	}

	if err := s.registry.Put(userID, session); err != nil {
		return nil, err
	}
	if err := session.start(); err != nil {
		s.registry.Delete(userID)
		return nil, err
	}

	if s.prepDelay == 0 {
		if err := session.activate(); err != nil {
			s.registry.Delete(userID)
			return nil, err
		}
	} else {
		session.scheduleActivation(s.prepDelay)
	}
	return session, nil
}

// SubmitAnswer records a choice on the user's active session.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID string, questionIndex, choiceIndex int) error {
	session, ok := s.registry.Get(userID)
	if !ok {
		return fmt.Errorf("%w: no session for user %s", domain.ErrNotFound, userID)
	}
	return session.submitAnswer(questionIndex, choiceIndex)
}

// Advance moves the user's session to the next question. When the cursor
// passes the last question the session is scored and done is true.
func (s *QuizService) Advance(ctx context.Context, userID string) (result *domain.SessionResult, done bool, err error) {
	session, ok := s.registry.Get(userID)
	if !ok {
		return nil, false, fmt.Errorf("%w: no session for user %s", domain.ErrNotFound, userID)
	}
	return session.advance()
}

// Session returns the user's registered session, if any.
func (s *QuizService) Session(userID string) (*Session, bool) {
	return s.registry.Get(userID)
}

// Abandon discards the user's unfinished session without scoring it.
// The countdown stops and no stats are recorded.
func (s *QuizService) Abandon(ctx context.Context, userID string) {
	session, ok := s.registry.Get(userID)
	if !ok {
		return
	}
	session.teardown()
	s.registry.Delete(userID)
}

// UserStats returns the freshest cumulative stats for a user.
func (s *QuizService) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	return s.stats.Stats(ctx, userID)
}

// Leaderboard recomputes the ranked view over all known user stats.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	stats, err := s.stats.Snapshot(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return RankLeaderboard(stats, s.now()), nil
}

// Reconcile flushes stats updates that failed their first write.
func (s *QuizService) Reconcile(ctx context.Context) (int, error) {
	return s.stats.Reconcile(ctx)
}

// applyStats runs on the completion path, which may originate from the
// timer goroutine, so it uses a background context. A failed write is
// logged and left for reconciliation; the session result already stands.
func (s *QuizService) applyStats(res domain.SessionResult) {
	ctx := context.Background()
	if _, err := s.stats.Apply(ctx, res); err != nil {
		s.logger.Warn("stats write deferred",
			"sessionId", res.SessionID,
			"userId", res.UserID,
			"err", err)
		return
	}
	if s.stats.PendingCount() > 0 {
		if flushed, err := s.stats.Reconcile(ctx); err == nil && flushed > 0 {
			s.logger.Info("reconciled deferred stats", "flushed", flushed)
		}
	}
}
