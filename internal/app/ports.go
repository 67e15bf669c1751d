package app

import (
	"context"
	"sync"
	"time"

	"quiz-host/internal/domain"
)

// Channel is one live session transport to the game server.
type Channel interface {
	ID() string
	// Send writes an envelope iff the channel is open and reports whether it did.
	Send(msgType string, payload any) bool
	// Close is idempotent.
	Close(code int, reason string)
}

// ChannelListener receives transport callbacks in arrival order, one at a time.
type ChannelListener interface {
	Opened()
	Message(data []byte)
	Closed(code int, reason string, wasClean bool)
	Failed(err error)
}

// Dialer constructs a channel for a game code. It must not block on the network.
type Dialer interface {
	Open(gameCode string, l ChannelListener) (Channel, error)
}

// Allocator asks the server for a new game code.
type Allocator interface {
	CreateGame(ctx context.Context) (string, error)
}

// Confirmer asks the host to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Notifier shows a user-visible alert.
type Notifier interface {
	Notify(message string)
}

// GameRecorder keeps a history of hosted games.
type GameRecorder interface {
	Record(ctx context.Context, rec domain.GameRecord) error
	Recent(ctx context.Context, limit int) ([]domain.GameRecord, error)
}

// TickerFunc calls tick every interval until the returned stop function is called.
type TickerFunc func(interval time.Duration, tick func()) (stop func())

// RealTicker drives ticks from a time.Ticker.
func RealTicker(interval time.Duration, tick func()) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				tick()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

type confirmAll struct{}

func (confirmAll) Confirm(string) bool { return true }
