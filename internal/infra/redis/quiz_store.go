package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-host/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultQuizzesKey holds the whole collection as one JSON document.
const DefaultQuizzesKey = "quizhost:quizzes"

// QuizStore keeps the quiz collection in a single Redis string so that several hosts
// can share one library.
type QuizStore struct {
	client *redis.Client
	key    string
}

func NewQuizStore(client *redis.Client, key string) *QuizStore {
	if key == "" {
		key = DefaultQuizzesKey
	}
	return &QuizStore{client: client, key: key}
}

// Load returns the stored collection. A missing key is seeded with the demo quizzes.
func (s *QuizStore) Load(ctx context.Context) ([]domain.Quiz, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		demo := domain.DemoQuizzes()
		if err := s.write(ctx, demo, true); err != nil {
			return nil, err
		}
		return s.Load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return quizzes, nil
}

func (s *QuizStore) Save(ctx context.Context, quizzes []domain.Quiz) error {
	if err := domain.ValidateCollection(quizzes); err != nil {
		return err
	}
	return s.write(ctx, quizzes, false)
}

// write stores the collection; onlyIfAbsent keeps a concurrent first save from being clobbered by seeding.
func (s *QuizStore) write(ctx context.Context, quizzes []domain.Quiz, onlyIfAbsent bool) error {
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	raw, err := json.Marshal(quizzes)
	if err != nil {
		return fmt.Errorf("encode quizzes: %w", err)
	}
	if onlyIfAbsent {
		err = s.client.SetNX(ctx, s.key, raw, 0).Err()
	} else {
		err = s.client.Set(ctx, s.key, raw, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
