// Package file keeps the quiz library in a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"quiz-host/internal/domain"
)

// QuizStore reads and writes the whole collection as one JSON array.
type QuizStore struct {
	path string
	mu   sync.Mutex
}

func NewQuizStore(path string) *QuizStore {
	return &QuizStore{path: path}
}

func (s *QuizStore) Path() string { return s.path }

// Load returns the stored quizzes. When the file does not exist yet it is created with the
// demo quizzes.
func (s *QuizStore) Load(ctx context.Context) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		demos := domain.DemoQuizzes()
		if err := s.write(demos); err != nil {
			return nil, err
		}
		return demos, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return nil, fmt.Errorf("decode quiz file %s: %w", s.path, err)
	}
	return quizzes, nil
}

func (s *QuizStore) Save(ctx context.Context, quizzes []domain.Quiz) error {
	if err := domain.ValidateCollection(quizzes); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(quizzes)
}

// LoadQuiz lets the store back a QuizRepository directly.
func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quizzes, err := s.Load(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, q := range quizzes {
		if q.ID == quizID {
			return q, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// write replaces the file through a temp file so readers never see a partial document.
func (s *QuizStore) write(quizzes []domain.Quiz) error {
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	data, err := json.MarshalIndent(quizzes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quizzes: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create quiz dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".quizzes-*.json")
	if err != nil {
		return fmt.Errorf("create temp quiz file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write quiz file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write quiz file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace quiz file: %w", err)
	}
	return nil
}
