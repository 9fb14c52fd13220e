package cloth

import "time"

// Clock measures wall time between frames.
type Clock struct {
	now  func() time.Time
	last time.Time
}

func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc creates a clock reading time from now.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now, last: now()}
}

// Tick returns the seconds since the previous tick, clamped by ClampFrameDt.
func (c *Clock) Tick() float64 {
	t := c.now()
	dt := t.Sub(c.last).Seconds()
	c.last = t
	return ClampFrameDt(dt)
}
