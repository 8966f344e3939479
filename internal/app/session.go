package app

import (
	"fmt"
	"math"
	"sync"
	"time"

	"medquiz-engine/internal/domain"
)

// SessionEvent is pushed to subscribers for things that happen without a
// client call: timer ticks and forced completion on expiry. Normal
// completion through advance also emits a terminal event so subscribers
// see a uniform stream.
type SessionEvent struct {
	Type             string                `json:"type"` // "tick" or "completed"
	RemainingSeconds int                   `json:"remainingSeconds,omitempty"`
	Expired          bool                  `json:"expired,omitempty"`
	Result           *domain.SessionResult `json:"result,omitempty"`
}

// Session is one quiz attempt: setup → starting → active → results.
// Transitions never move backward; a retry is a brand-new session with a
// new id. All mutation goes through the state-guarded methods below.
type Session struct {
	id     string
	userID string
	config domain.QuizConfig
	now    func() time.Time

	mu        sync.Mutex
	status    domain.SessionStatus
	questions []domain.Question
	answers   []*int
	cursor    int
	createdAt time.Time
	startedAt time.Time
	result    *domain.SessionResult
	abandoned bool

	timer        *Timer
	prep         *time.Timer
	tickInterval time.Duration
	events       chan SessionEvent
	onComplete   func(domain.SessionResult)
}

func newSession(id, userID string, cfg domain.QuizConfig, questions []domain.Question, now func() time.Time) *Session {
	return &Session{
		id:           id,
		userID:       userID,
		config:       cfg,
		now:          now,
		status:       domain.StatusSetup,
		questions:    questions,
		createdAt:    now(),
		tickInterval: time.Second,
		events:       make(chan SessionEvent, 16),
	}
}

// NewSession is exported for infrastructure layers and tests that need a
// bare session outside the service's start flow.
func NewSession(id, userID string, cfg domain.QuizConfig, questions []domain.Question) *Session {
	return newSession(id, userID, cfg, questions, time.Now)
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// Config returns the validated configuration the session runs under.
func (s *Session) Config() domain.QuizConfig { return s.config }

// Status returns the current lifecycle state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Questions returns the resolved question sequence.
func (s *Session) Questions() []domain.Question { return s.questions }

// Answers returns a copy of the answer slots; nil means unanswered.
func (s *Session) Answers() []*int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*int, len(s.answers))
	copy(out, s.answers)
	return out
}

// Result returns the frozen outcome, or nil before results.
func (s *Session) Result() *domain.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Events exposes the tick/completion stream for transports.
func (s *Session) Events() <-chan SessionEvent { return s.events }

// start moves setup → starting and allocates the answer slots, one per
// question, all unanswered.
func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusSetup {
		return fmt.Errorf("%w: cannot start session in state %q", domain.ErrValidation, s.status)
	}
	s.status = domain.StatusStarting
	s.answers = make([]*int, len(s.questions))
	return nil
}

// activate moves starting → active and, for timed sessions, launches the
// countdown. The prep delay before activation is purely cosmetic and is
// scheduled by the service.
func (s *Session) activate() error {
	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return fmt.Errorf("%w: session was abandoned", domain.ErrValidation)
	}
	if s.status != domain.StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot activate session in state %q", domain.ErrValidation, s.status)
	}
	s.status = domain.StatusActive
	s.startedAt = s.now()

	var timer *Timer
	if s.config.Timed() {
		timer = newTimer(time.Duration(s.config.TimeLimitSeconds)*time.Second, s.now, s.tickInterval)
		s.timer = timer
	}
	s.mu.Unlock()

	if timer != nil {
		go timer.Run(s.emitTick, s.expire)
	}
	return nil
}

// submitAnswer writes a choice into the given slot. Valid only while
// active; resubmitting a slot overwrites the prior answer.
func (s *Session) submitAnswer(questionIndex, choiceIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive {
		return fmt.Errorf("%w: cannot answer in state %q", domain.ErrValidation, s.status)
	}
	if questionIndex < 0 || questionIndex >= len(s.answers) {
		return fmt.Errorf("%w: question index %d out of range", domain.ErrValidation, questionIndex)
	}
	if choiceIndex < 0 || choiceIndex >= len(s.questions[questionIndex].Options) {
		return fmt.Errorf("%w: choice index %d out of range", domain.ErrValidation, choiceIndex)
	}
	choice := choiceIndex
	s.answers[questionIndex] = &choice
	return nil
}

// advance moves the cursor to the next question. Past the last question
// the session is scored and frozen; the returned result is non-nil and
// done is true.
func (s *Session) advance() (result *domain.SessionResult, done bool, err error) {
	s.mu.Lock()
	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("%w: cannot advance in state %q", domain.ErrValidation, s.status)
	}
	s.cursor++
	if s.cursor < len(s.questions) {
		s.mu.Unlock()
		return nil, false, nil
	}
	res := s.completeLocked()
	s.mu.Unlock()
	s.finish(res, false)
	return &res, true, nil
}

// cursorIndex returns the active question pointer.
func (s *Session) cursorIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// expire is the timer's expiry hook: forces active → results, leaving
// unanswered slots nil. A session that already completed ignores it.
func (s *Session) expire() {
	s.mu.Lock()
	if s.abandoned || s.status != domain.StatusActive {
		s.mu.Unlock()
		return
	}
	res := s.completeLocked()
	s.mu.Unlock()
	s.finish(res, true)
}

// scheduleActivation arms the prep pause: after d the session flips to
// active, unless it was abandoned in the meantime.
func (s *Session) scheduleActivation(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return
	}
	s.prep = time.AfterFunc(d, func() { _ = s.activate() })
}

// teardown cancels the pending activation and the countdown, and marks
// the session abandoned so neither can fire afterwards. No scoring
// happens; the attempt simply never reaches results.
func (s *Session) teardown() {
	s.mu.Lock()
	s.abandoned = true
	prep := s.prep
	timer := s.timer
	s.mu.Unlock()
	if prep != nil {
		prep.Stop()
	}
	if timer != nil {
		timer.Stop()
	}
}

// completeLocked scores the frozen answers and transitions to results.
// Caller holds s.mu. Scoring here is the only writer of the terminal
// fields; recomputing over the same frozen session yields the same score.
func (s *Session) completeLocked() domain.SessionResult {
	summary := ScoreAnswers(s.questions, s.answers)
	completedAt := s.now()
	res := domain.SessionResult{
		SessionID:        s.id,
		UserID:           s.userID,
		Score:            summary.Score,
		PointsEarned:     summary.PointsEarned,
		CorrectCount:     summary.CorrectCount,
		QuestionCount:    len(s.questions),
		TimeSpentSeconds: int(math.Round(completedAt.Sub(s.startedAt).Seconds())),
		CompletedAt:      completedAt,
	}
	s.status = domain.StatusResults
	s.result = &res
	return res
}

// finish runs the post-completion side effects outside the lock: stop the
// countdown, hand the result to the service hook, notify subscribers. The
// hook runs first so stats reads triggered by the completed event see the
// session already applied.
func (s *Session) finish(res domain.SessionResult, expired bool) {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.onComplete != nil {
		s.onComplete(res)
	}
	s.emit(SessionEvent{Type: "completed", Expired: expired, Result: &res})
}

func (s *Session) emitTick(remaining time.Duration) {
	s.emit(SessionEvent{Type: "tick", RemainingSeconds: int(remaining.Round(time.Second).Seconds())})
}

// emit never blocks; when the subscriber lags, the oldest queued event is
// dropped in favor of the fresh one.
func (s *Session) emit(ev SessionEvent) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}
