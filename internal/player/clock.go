package player

import "time"

// Clock creates the tickers that drive the countdown. Tests swap in a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker the session loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the wall-clock implementation.
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
