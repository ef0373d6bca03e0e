// Package tick is the timebase shared by every component.
//
// A Tick is a wrapping millisecond counter. Components never compare two
// Ticks directly; they compare the elapsed value returned by Since, which
// stays correct when the counter overflows.
package tick

import (
	"sync"
	"time"
)

// Tick counts milliseconds and wraps at 2^32.
type Tick uint32

// Since returns now-prev in unsigned arithmetic.
func Since(now, prev Tick) Tick {
	return now - prev
}

// FromDuration converts d to whole milliseconds. Negative durations are 0.
func FromDuration(d time.Duration) Tick {
	if d <= 0 {
		return 0
	}
	return Tick(uint64(d/time.Millisecond) & 0xFFFFFFFF)
}

// Duration converts t back to a time.Duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// Clock hands out Ticks relative to the moment it was created.
//
// Base shifts the origin so tests can start right before the wrap.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	base  Tick
	now   func() time.Time
}

func NewClock(base Tick) *Clock {
	return newClockWith(base, time.Now)
}

func newClockWith(base Tick, now func() time.Time) *Clock {
	return &Clock{start: now(), base: base, now: now}
}

func (c *Clock) Now() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.start)
	return c.base + FromDuration(elapsed)
}
