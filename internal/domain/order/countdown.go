package order

import (
	"fmt"
	"time"
)

// DefaultWindow is how long a checkout session accepts submissions.
const DefaultWindow = 15 * time.Minute

// Countdown tracks the payment window of one checkout session. It only gates
// new submissions; a submission already in flight is never interrupted.
type Countdown struct {
	deadline time.Time
	now      func() time.Time
}

// NewCountdown starts a window of length d at now().
func NewCountdown(d time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{deadline: now().Add(d), now: now}
}

// Deadline is when the window closes.
func (c *Countdown) Deadline() time.Time { return c.deadline }

// Remaining is the time left, truncated to whole seconds and never negative.
func (c *Countdown) Remaining() time.Duration {
	left := c.deadline.Sub(c.now())
	if left <= 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// Expired reports whether the window has closed.
func (c *Countdown) Expired() bool { return c.Remaining() == 0 }

// Clock renders the remaining time as MM:SS.
func (c *Countdown) Clock() string {
	left := int(c.Remaining() / time.Second)
	return fmt.Sprintf("%02d:%02d", left/60, left%60)
}
