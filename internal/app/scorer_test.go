package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medquiz-engine/internal/domain"
)

func intp(v int) *int { return &v }

func questionsForScoring() []domain.Question {
	return []domain.Question{
		{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: domain.DifficultyEasy},
		{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 1, Difficulty: domain.DifficultyEasy},
		{ID: "q3", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: domain.DifficultyMedium},
		{ID: "q4", Options: []string{"a", "b"}, CorrectIndex: 1, Difficulty: domain.DifficultyMedium},
		{ID: "q5", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: domain.DifficultyHard},
	}
}

func TestScoreAnswersThreeOfFive(t *testing.T) {
	// correct on q1 (10), q2 (10), q3 (15); wrong on q4; q5 unanswered
	answers := []*int{intp(0), intp(1), intp(0), intp(0), nil}

	summary := ScoreAnswers(questionsForScoring(), answers)

	assert.Equal(t, 3, summary.CorrectCount)
	assert.Equal(t, 60, summary.Score)
	assert.Equal(t, 35, summary.PointsEarned)
}

func TestScoreAnswersAllCorrect(t *testing.T) {
	answers := []*int{intp(0), intp(1), intp(0), intp(1), intp(0)}

	summary := ScoreAnswers(questionsForScoring(), answers)

	assert.Equal(t, 5, summary.CorrectCount)
	assert.Equal(t, 100, summary.Score)
	assert.Equal(t, 70, summary.PointsEarned) // 10+10+15+15+20
}

func TestScoreAnswersNoneAnswered(t *testing.T) {
	answers := make([]*int, 5)

	summary := ScoreAnswers(questionsForScoring(), answers)

	assert.Equal(t, 0, summary.CorrectCount)
	assert.Equal(t, 0, summary.Score)
	assert.Equal(t, 0, summary.PointsEarned)
}

func TestScoreAnswersRounding(t *testing.T) {
	questions := questionsForScoring()[:3]
	// 1 of 3 correct → 33.33 → 33; 2 of 3 → 66.67 → 67
	one := ScoreAnswers(questions, []*int{intp(0), nil, nil})
	assert.Equal(t, 33, one.Score)

	two := ScoreAnswers(questions, []*int{intp(0), intp(1), nil})
	assert.Equal(t, 67, two.Score)
}

func TestScoreAnswersDeterministic(t *testing.T) {
	questions := questionsForScoring()
	answers := []*int{intp(0), intp(0), intp(0), nil, intp(1)}

	first := ScoreAnswers(questions, answers)
	second := ScoreAnswers(questions, answers)

	assert.Equal(t, first, second)
}

func TestScoreAnswersEmpty(t *testing.T) {
	summary := ScoreAnswers(nil, nil)
	assert.Zero(t, summary.Score)
	assert.Zero(t, summary.PointsEarned)
	assert.Zero(t, summary.CorrectCount)
}
