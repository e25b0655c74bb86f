package player

import "quiz-player/internal/domain"

// Countdown is the local approximation of the server's remaining time.
// It is cosmetic: scoring only ever uses the server clock.
type Countdown struct {
	remaining int
}

// Reset adopts a server time_left: ceil, clamped at zero.
func (c *Countdown) Reset(timeLeft float64) {
	c.remaining = domain.WholeSeconds(timeLeft)
}

// Tick decrements by exactly one second and never goes below zero.
func (c *Countdown) Tick() int {
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Remaining returns whole seconds left.
func (c Countdown) Remaining() int {
	return c.remaining
}

// Expired reports whether the countdown reached zero.
func (c Countdown) Expired() bool {
	return c.remaining <= 0
}
