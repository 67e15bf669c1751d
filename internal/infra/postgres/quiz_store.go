package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-host/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore keeps each quiz as a JSONB row, ordered by position.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Load(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	return quizzes, nil
}

// Save replaces the whole collection in one transaction.
func (s *QuizStore) Save(ctx context.Context, quizzes []domain.Quiz) error {
	if err := domain.ValidateCollection(quizzes); err != nil {
		return err
	}
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quizzes`); err != nil {
			return fmt.Errorf("clear quizzes: %w", err)
		}
		for i, quiz := range quizzes {
			raw, err := json.Marshal(quiz)
			if err != nil {
				return fmt.Errorf("marshal quiz %s: %w", quiz.ID, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO quizzes (id, position, data, updated_at) VALUES ($1, $2, $3, now())`,
				quiz.ID, i, raw); err != nil {
				return fmt.Errorf("insert quiz %s: %w", quiz.ID, err)
			}
		}
		return nil
	})
}

// LoadQuiz fetches a single quiz; it backs the cached repository.
func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

// SeedIfEmpty stores the demo quizzes when the table has no rows.
func (s *QuizStore) SeedIfEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM quizzes`).Scan(&n); err != nil {
		return false, fmt.Errorf("count quizzes: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	return true, s.Save(ctx, domain.DemoQuizzes())
}
