package app

import (
	"math"

	"medquiz-engine/internal/domain"
)

// difficultyPoints maps a question's difficulty to the reward for a
// correct answer. Unknown difficulties fall back to the easy value.
var difficultyPoints = map[domain.Difficulty]int{
	domain.DifficultyEasy:   10,
	domain.DifficultyMedium: 15,
	domain.DifficultyHard:   20,
}

// ScoreSummary is the outcome of scoring one frozen (questions, answers) pair.
type ScoreSummary struct {
	Score        int // 0..100, rounded percentage of correct answers
	PointsEarned int // sum of difficulty-weighted points for correct answers
	CorrectCount int
}

// ScoreAnswers grades answers against questions. A nil entry is an
// unanswered question and always counts as incorrect. Pure and
// deterministic: identical inputs always yield identical summaries.
func ScoreAnswers(questions []domain.Question, answers []*int) ScoreSummary {
	var summary ScoreSummary
	if len(questions) == 0 {
		return summary
	}
	for i, q := range questions {
		if i >= len(answers) || answers[i] == nil {
			continue
		}
		if *answers[i] != q.CorrectIndex {
			continue
		}
		summary.CorrectCount++
		points, ok := difficultyPoints[q.Difficulty]
		if !ok {
			points = difficultyPoints[domain.DifficultyEasy]
		}
		summary.PointsEarned += points
	}
	summary.Score = int(math.Round(100 * float64(summary.CorrectCount) / float64(len(questions))))
	return summary
}
