package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-host/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewQuizStore(domain.DemoQuizzes()...)}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "demo_q1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.Calls() != 1 {
		t.Fatalf("expected loader once, got %d", loader.Calls())
	}

	if _, err := repo.GetQuiz(context.Background(), "demo_q1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.Calls() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.Calls())
	}

	repo.Invalidate("demo_q1")
	if _, err := repo.GetQuiz(context.Background(), "demo_q1"); err != nil {
		t.Fatalf("get quiz 3: %v", err)
	}
	if loader.Calls() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.Calls())
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewQuizStore(domain.DemoQuizzes()...)}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "demo_q2")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "demo_q2")
	if loader.Calls() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.Calls())
	}
}

func TestQuizRepositoryReturnsPrivateCopies(t *testing.T) {
	repo := NewQuizRepository(NewQuizStore(domain.DemoQuizzes()...), time.Minute)

	first, err := repo.GetQuiz(context.Background(), "demo_q2")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	first.Questions[0].Options[0].IsCorrect = true

	second, _ := repo.GetQuiz(context.Background(), "demo_q2")
	if second.Questions[0].Options[0].IsCorrect {
		t.Fatalf("cached quiz was modified through a returned copy")
	}
}

func TestQuizRepositoryDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewQuizStore()}
	repo := NewQuizRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected ErrQuizNotFound, got %v", err)
		}
	}
	if loader.Calls() != 2 {
		t.Fatalf("errors should not be cached, loader calls %d", loader.Calls())
	}
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
