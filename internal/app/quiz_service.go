package app

import (
	"context"
	"fmt"
	"sync"

	"quiz-host/internal/domain"
)

// QuizStore persists the host's whole quiz collection (file, Redis, Postgres).
type QuizStore interface {
	Load(ctx context.Context) ([]domain.Quiz, error)
	Save(ctx context.Context, quizzes []domain.Quiz) error
}

// QuizRepository loads single quizzes (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// cacheInvalidator is implemented by repositories that cache quizzes.
type cacheInvalidator interface {
	Invalidate(quizID string)
}

// QuizService manages the local quiz collection used to host games.
type QuizService struct {
	store   QuizStore
	quizzes QuizRepository

	// serializes read-modify-write cycles on the store
	mu sync.Mutex
}

// NewQuizService builds the service. quizzes may be nil, in which case lookups scan the store.
func NewQuizService(store QuizStore, quizzes QuizRepository) *QuizService {
	return &QuizService{store: store, quizzes: quizzes}
}

// List returns the collection in stored order.
func (s *QuizService) List(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.Load(ctx)
}

// Get resolves one quiz by id.
func (s *QuizService) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	if s.quizzes != nil {
		return s.quizzes.GetQuiz(ctx, quizID)
	}
	return findQuiz(ctx, s.store, quizID)
}

// Import normalizes the incoming quizzes and merges them into the collection.
// A quiz whose id already exists replaces the stored one in place.
func (s *QuizService) Import(ctx context.Context, incoming ...domain.Quiz) ([]domain.Quiz, error) {
	normalized := make([]domain.Quiz, 0, len(incoming))
	for _, q := range incoming {
		n, err := domain.Normalize(q)
		if err != nil {
			return nil, err
		}
		if err := domain.Validate(n); err != nil {
			return nil, fmt.Errorf("import %q: %w", n.Title, err)
		}
		normalized = append(normalized, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	position := make(map[string]int, len(current))
	for i, q := range current {
		position[q.ID] = i
	}
	for _, q := range normalized {
		if i, ok := position[q.ID]; ok {
			current[i] = q
			continue
		}
		position[q.ID] = len(current)
		current = append(current, q)
	}
	if err := s.store.Save(ctx, current); err != nil {
		return nil, err
	}
	for _, q := range normalized {
		s.invalidate(q.ID)
	}
	return normalized, nil
}

// Delete removes a quiz from the collection.
func (s *QuizService) Delete(ctx context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	kept := current[:0]
	found := false
	for _, q := range current {
		if q.ID == quizID {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}
	if err := s.store.Save(ctx, kept); err != nil {
		return err
	}
	s.invalidate(quizID)
	return nil
}

func (s *QuizService) invalidate(quizID string) {
	if inv, ok := s.quizzes.(cacheInvalidator); ok {
		inv.Invalidate(quizID)
	}
}

// StoreLoader adapts a QuizStore to single-quiz lookups for caching repositories.
type StoreLoader struct {
	Store QuizStore
}

func (l StoreLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return findQuiz(ctx, l.Store, quizID)
}

func findQuiz(ctx context.Context, store QuizStore, quizID string) (domain.Quiz, error) {
	quizzes, err := store.Load(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, q := range quizzes {
		if q.ID == quizID {
			return q, nil
		}
	}
	return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
}
