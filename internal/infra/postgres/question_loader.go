package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"medquiz-engine/internal/domain"
)

// QuestionLoader loads question pools from Postgres. Options are stored as
// a JSONB array; the row order is fixed by id so repeated loads of the
// same filter produce the same sequence.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, difficulties []domain.Difficulty) ([]domain.Question, error) {
	query := `SELECT id, prompt, options, correct_index, difficulty, category FROM questions`
	args := []interface{}{}
	if len(difficulties) > 0 {
		filter := make([]string, len(difficulties))
		for i, d := range difficulties {
			filter[i] = string(d)
		}
		query += ` WHERE difficulty = ANY($1)`
		args = append(args, filter)
	}
	query += ` ORDER BY id`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q          domain.Question
			rawOptions []byte
			difficulty string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &rawOptions, &q.CorrectIndex, &difficulty, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for question %s: %w", q.ID, err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
