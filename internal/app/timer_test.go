package app_test

import (
	"testing"
	"time"

	"quiz-host/internal/app"
)

func TestCountdownUrgencyAndExpiry(t *testing.T) {
	c := app.NewCountdown(10)
	if c.Label() != "10s" || c.ElapsedFraction() != 0 {
		t.Fatalf("unexpected initial state %q %v", c.Label(), c.ElapsedFraction())
	}

	for i := 0; i < 4; i++ {
		c.Tick()
	}
	if c.Remaining() != 6 || c.Urgent() {
		t.Fatalf("expected 6s and calm, got %d urgent=%v", c.Remaining(), c.Urgent())
	}

	c.Tick()
	if !c.Urgent() {
		t.Fatalf("expected urgent at %ds", c.Remaining())
	}

	for i := 0; i < 5; i++ {
		c.Tick()
	}
	if !c.Expired() || c.Label() != "Time's up!" || c.ElapsedFraction() != 1 {
		t.Fatalf("expected expired countdown, got %d %q", c.Remaining(), c.Label())
	}
	if c.Tick() {
		t.Fatalf("tick after expiry should report false")
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining went negative: %d", c.Remaining())
	}
}

func TestCountdownShortLimitIsUrgentOnFirstTick(t *testing.T) {
	c := app.NewCountdown(3)
	if c.Urgent() {
		t.Fatalf("urgency is only evaluated after a tick")
	}
	c.Tick()
	if !c.Urgent() {
		t.Fatalf("expected urgent after first tick")
	}
}

func TestCountdownZeroLimit(t *testing.T) {
	c := app.NewCountdown(0)
	if !c.Expired() || c.ElapsedFraction() != 1 {
		t.Fatalf("zero limit should start expired")
	}
	if app.NewCountdown(-4).Total() != 0 {
		t.Fatalf("negative limits clamp to zero")
	}
}

func TestRealTickerStops(t *testing.T) {
	ticks := make(chan struct{}, 16)
	stop := app.RealTicker(5*time.Millisecond, func() { ticks <- struct{}{} })

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatalf("ticker never fired")
	}
	stop()
	stop()

	// a tick already in flight may still land
	time.Sleep(20 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(ticks); n > 0 {
		t.Fatalf("ticker fired %d times after stop", n)
	}
}
