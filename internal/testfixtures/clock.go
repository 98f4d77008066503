package testfixtures

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a manually driven time source shared by the services under test.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// NowFunc is Now in the shape the service configs take.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// At moves the clock to the HH:MM time of day on the given weekday of the
// reference week (Monday 2024-03-04 to Sunday 2024-03-10), in the clock's
// current location.
func (c *Clock) At(day time.Weekday, clock string) time.Time {
	tod, err := time.Parse("15:04", clock)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: bad time of day %q", clock))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ref := ReferenceTime().In(c.now.Location())
	offset := (int(day) + 6) % 7
	c.now = time.Date(ref.Year(), ref.Month(), ref.Day()+offset, tod.Hour(), tod.Minute(), 0, 0, ref.Location())
	return c.now
}
