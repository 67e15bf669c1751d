package memory

import (
	"context"
	"sync"

	"quiz-host/internal/domain"
)

// QuizStore keeps the quiz collection in process memory (useful for tests/demos).
type QuizStore struct {
	mu      sync.RWMutex
	quizzes []domain.Quiz
}

// NewQuizStore seeds the store without validation; Save is where rules apply.
func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	return &QuizStore{quizzes: append([]domain.Quiz(nil), seed...)}
}

func (s *QuizStore) Load(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyQuizzes(s.quizzes)
}

func (s *QuizStore) Save(_ context.Context, quizzes []domain.Quiz) error {
	if err := domain.ValidateCollection(quizzes); err != nil {
		return err
	}
	cp, err := copyQuizzes(quizzes)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.quizzes = cp
	s.mu.Unlock()
	return nil
}

// LoadQuiz lets the store back a QuizRepository directly.
func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.quizzes {
		if q.ID == quizID {
			return domain.Snapshot(q)
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func copyQuizzes(in []domain.Quiz) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, 0, len(in))
	for _, q := range in {
		cp, err := domain.Snapshot(q)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
