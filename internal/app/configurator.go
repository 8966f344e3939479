package app

import (
	"fmt"

	"medquiz-engine/internal/domain"
)

// quickQuestionCount is the fixed length of a quick-mode session.
const quickQuestionCount = 5

// ConfigRequest carries the mode plus the user-supplied overrides that
// timed and custom modes accept. Zero values mean "not provided".
type ConfigRequest struct {
	Mode             domain.Mode         `json:"mode"`
	QuestionCount    int                 `json:"questionCount,omitempty"`
	TimeLimitSeconds int                 `json:"timeLimitSeconds,omitempty"`
	Difficulties     []domain.Difficulty `json:"difficulties,omitempty"`
}

// BuildConfig validates a request against the available question pool size
// and produces a concrete QuizConfig. All failures wrap ErrValidation.
func BuildConfig(req ConfigRequest, poolSize int) (domain.QuizConfig, error) {
	cfg := domain.QuizConfig{Mode: req.Mode, Difficulties: req.Difficulties}
	for _, d := range req.Difficulties {
		if !d.Valid() {
			return domain.QuizConfig{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrValidation, d)
		}
	}

	switch req.Mode {
	case domain.ModeQuick:
		cfg.QuestionCount = quickQuestionCount
	case domain.ModeTimed:
		if req.QuestionCount < 1 {
			return domain.QuizConfig{}, fmt.Errorf("%w: timed mode requires a question count preset", domain.ErrValidation)
		}
		if req.TimeLimitSeconds <= 0 {
			return domain.QuizConfig{}, fmt.Errorf("%w: timed mode requires a positive time limit", domain.ErrValidation)
		}
		cfg.QuestionCount = req.QuestionCount
		cfg.TimeLimitSeconds = req.TimeLimitSeconds
	case domain.ModeCustom:
		if req.QuestionCount < 1 {
			return domain.QuizConfig{}, fmt.Errorf("%w: question count must be at least 1", domain.ErrValidation)
		}
		if req.TimeLimitSeconds < 0 {
			return domain.QuizConfig{}, fmt.Errorf("%w: time limit must be positive when set", domain.ErrValidation)
		}
		cfg.QuestionCount = req.QuestionCount
		cfg.TimeLimitSeconds = req.TimeLimitSeconds
	default:
		return domain.QuizConfig{}, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, req.Mode)
	}

	if cfg.QuestionCount > poolSize {
		return domain.QuizConfig{}, fmt.Errorf("%w: requested %d questions but only %d available", domain.ErrValidation, cfg.QuestionCount, poolSize)
	}
	return cfg, nil
}
