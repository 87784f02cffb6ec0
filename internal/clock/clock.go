// Package clock provides the engine's notion of "now": wall time until an
// administrator fast-forwards it, after which it keeps ticking from the
// chosen point.
package clock

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrMovedBackward = errors.New("clock cannot move backward")
	ErrOutOfRange    = errors.New("clock time out of range")
)

// Latest bounds how far the clock may be advanced. Journal identifiers and
// JSON timestamps both stop working past year 9999.
var Latest = time.Date(9000, 1, 1, 0, 0, 0, 0, time.UTC)

type Clock struct {
	mu      sync.Mutex
	wall    func() time.Time
	anchor  time.Time // wall time when virtual was set
	virtual *time.Time
}

func New() *Clock { return NewWithSource(time.Now) }

// NewWithSource uses wall as the underlying time source.
func NewWithSource(wall func() time.Time) *Clock {
	return &Clock{wall: wall}
}

// Now returns the current time, virtual if the clock has been advanced.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Clock) now() time.Time {
	w := c.wall().UTC()
	if c.virtual == nil {
		return w
	}
	return c.virtual.Add(w.Sub(c.anchor))
}

// Advance moves the clock to t, which must be strictly after Now and not
// after Latest.
func (c *Clock) Advance(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(Latest) {
		return ErrOutOfRange
	}
	if !t.After(c.now()) {
		return ErrMovedBackward
	}
	t = t.UTC()
	c.virtual = &t
	c.anchor = c.wall().UTC()
	return nil
}

// State captures the virtual time, if any, for snapshots.
type State struct {
	Virtual *time.Time `json:"virtual,omitempty"`
}

func (c *Clock) Export() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.virtual == nil {
		return State{}
	}
	now := c.now()
	return State{Virtual: &now}
}

// Restore resumes from a snapshot. A snapshot virtual time that lies behind
// wall time or past Latest is dropped.
func (c *Clock) Restore(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.wall().UTC()
	if st.Virtual == nil || !st.Virtual.After(w) || st.Virtual.After(Latest) {
		c.virtual = nil
		return
	}
	v := st.Virtual.UTC()
	c.virtual = &v
	c.anchor = w
}

// AddMonths adds n calendar months, clamping the day to the target month's
// length (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// MonthsBetween counts whole calendar months from a to b. It is negative when
// b is before a.
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return -MonthsBetween(b, a)
	}
	y1, m1, _ := a.Date()
	y2, m2, _ := b.In(a.Location()).Date()
	n := (y2-y1)*12 + int(m2-m1)
	for n > 0 && AddMonths(a, n).After(b) {
		n--
	}
	return n
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
