package memory

import (
	"context"
	"sync"

	"quiz-host/internal/domain"
)

// DefaultHistoryLimit bounds how many games the in-memory history keeps.
const DefaultHistoryLimit = 100

// GameHistory is an in-memory implementation of app.GameRecorder, newest first.
type GameHistory struct {
	mu      sync.RWMutex
	limit   int
	records []domain.GameRecord
}

func NewGameHistory(limit int) *GameHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &GameHistory{limit: limit}
}

func (h *GameHistory) Record(_ context.Context, rec domain.GameRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]domain.GameRecord{rec}, h.records...)
	if len(h.records) > h.limit {
		h.records = h.records[:h.limit]
	}
	return nil
}

func (h *GameHistory) Recent(_ context.Context, limit int) ([]domain.GameRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}
	return append([]domain.GameRecord(nil), h.records[:limit]...), nil
}
