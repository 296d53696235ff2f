package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown drives the one-second betting-window display. Each tick
// recomputes the remaining seconds from the wall clock and the server-issued
// start time, so a suspended tab or a slow ticker cannot make the display
// drift from the authoritative window.
//
// Restart cancels any running ticker before starting the next one; two
// tickers must never race on the same display.
type Countdown struct {
	clock    clockwork.Clock
	duration time.Duration
	onTick   func(remaining int)

	mu   sync.Mutex
	stop chan struct{}
}

// NewCountdown returns a countdown over the given window length. onTick is
// invoked with the current remaining seconds, first immediately on Restart
// and then once per second until the window closes.
func NewCountdown(clk clockwork.Clock, duration time.Duration, onTick func(remaining int)) *Countdown {
	return &Countdown{
		clock:    clk,
		duration: duration,
		onTick:   onTick,
	}
}

// Remaining computes the clamped seconds left relative to startTime.
func (c *Countdown) Remaining(startTime time.Time) int {
	elapsed := int(c.clock.Since(startTime) / time.Second)
	remaining := int(c.duration/time.Second) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Restart atomically replaces the running ticker with a fresh one seeded
// from startTime.
func (c *Countdown) Restart(startTime time.Time) {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(startTime, stop)
}

// Stop cancels the running ticker, if any.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) run(startTime time.Time, stop chan struct{}) {
	remaining := c.Remaining(startTime)
	c.onTick(remaining)
	if remaining == 0 {
		return
	}

	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			remaining := c.Remaining(startTime)
			c.onTick(remaining)
			if remaining == 0 {
				return
			}
		}
	}
}
