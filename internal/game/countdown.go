package game

import (
	"time"

	"pixelwar.app/pxw/internal/types"
)

// Countdown drives the automatic new-game attempt. It starts when a game is
// inactive or past its end time, fires once when it reaches zero, and stays
// latched until a snapshot shows a running game again.
type Countdown struct {
	ticks     int
	remaining int
	counting  bool
	fired     bool
}

// NewCountdown returns an idle countdown of the given length.
func NewCountdown(ticks int) Countdown {
	if ticks <= 0 {
		ticks = 1
	}
	return Countdown{ticks: ticks}
}

// Observe updates the countdown from a confirmed snapshot.
func (c *Countdown) Observe(snap types.GameSnapshot, now time.Time) {
	if snap.IsActive && !snap.Ended(now) {
		c.counting = false
		c.fired = false
		c.remaining = 0
		return
	}
	if !c.counting && !c.fired {
		c.counting = true
		c.remaining = c.ticks
	}
}

// Tick advances a running countdown. It returns true exactly once, on the
// tick that reaches zero.
func (c *Countdown) Tick() bool {
	if !c.counting || c.fired {
		return false
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	c.remaining = 0
	c.counting = false
	c.fired = true
	return true
}

// Counting reports whether the countdown is running.
func (c Countdown) Counting() bool { return c.counting }

// Fired reports whether the create attempt has been issued and not yet
// cleared by a running game.
func (c Countdown) Fired() bool { return c.fired }

// Remaining is the number of ticks left while counting.
func (c Countdown) Remaining() int { return c.remaining }
