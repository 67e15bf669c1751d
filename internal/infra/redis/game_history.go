package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-host/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultHistoryKey = "quizhost:history"
	historyLimit      = 100
)

// GameHistory records finished games in a capped Redis list, newest first.
type GameHistory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewGameHistory builds the history. A positive ttl expires the whole list after the last write.
func NewGameHistory(client *redis.Client, key string, ttl time.Duration) *GameHistory {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &GameHistory{client: client, key: key, ttl: ttl}
}

func (h *GameHistory) Record(ctx context.Context, rec domain.GameRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode game record: %w", err)
	}
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, h.key, raw)
		pipe.LTrim(ctx, h.key, 0, historyLimit-1)
		if h.ttl > 0 {
			pipe.Expire(ctx, h.key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record game %s: %w", rec.GameCode, err)
	}
	return nil
}

func (h *GameHistory) Recent(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	items, err := h.client.LRange(ctx, h.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]domain.GameRecord, 0, len(items))
	for _, item := range items {
		var rec domain.GameRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			// skip entries written by an incompatible version
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
