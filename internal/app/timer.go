package app

import "fmt"

// UrgentThreshold is the remaining time at which the countdown switches to its urgent style.
const UrgentThreshold = 5

const timeUpLabel = "Time's up!"

// Countdown is the host-side visual timer for one question. It never changes the game phase.
type Countdown struct {
	total     int
	remaining int
	urgent    bool
}

func NewCountdown(seconds int) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{total: seconds, remaining: seconds}
}

// Tick removes one second. It reports false once the countdown already reached zero.
func (c *Countdown) Tick() bool {
	if c.remaining == 0 {
		return false
	}
	c.remaining--
	if c.remaining <= UrgentThreshold {
		c.urgent = true
	}
	return true
}

func (c *Countdown) Remaining() int { return c.remaining }

func (c *Countdown) Total() int { return c.total }

func (c *Countdown) Expired() bool { return c.remaining == 0 }

// Urgent latches on the first tick at or below UrgentThreshold.
func (c *Countdown) Urgent() bool { return c.urgent }

// ElapsedFraction is 0 at start and 1 at expiry.
func (c *Countdown) ElapsedFraction() float64 {
	if c.total == 0 {
		return 1
	}
	return float64(c.total-c.remaining) / float64(c.total)
}

func (c *Countdown) Label() string {
	if c.Expired() {
		return timeUpLabel
	}
	return fmt.Sprintf("%ds", c.remaining)
}
