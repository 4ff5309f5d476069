package clock

import (
	"sync"
	"time"
)

// Clock is the simulated market time. It never consults the wall clock:
// its value only moves when the ticker advances it or when callers supply
// explicit timestamps.
type Clock struct {
	mu        sync.Mutex
	now       time.Time
	lastStamp time.Time
	lastTrade time.Time
	loc       *time.Location
}

// New creates a clock positioned at start, interpreting calendar days in loc.
func New(start time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{now: start.In(loc), loc: loc}
}

// StartTime returns the time a fresh clock should start at: the latest
// persisted trade when there is one, otherwise the given day at openHour.
func StartTime(lastTrade, today time.Time, loc *time.Location, openHour int) time.Time {
	if !lastTrade.IsZero() {
		return lastTrade.In(loc)
	}
	y, m, d := today.In(loc).Date()
	return time.Date(y, m, d, openHour, 0, 0, 0, loc)
}

// Location returns the time zone used for calendar days.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t.In(c.loc)
	}
}

// SessionOpen returns openHour on the current simulated day.
func (c *Clock) SessionOpen(openHour int) time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, openHour, 0, 0, 0, c.loc)
}

// Stamp resolves the timestamp of an operation. An explicit time is used
// as given unless it would run behind a previously issued stamp, in which
// case the previous stamp is repeated. Without an explicit time the last
// trade's time is reused, or the current simulated time if nothing has
// traded yet.
func (c *Clock) Stamp(at *time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t time.Time
	switch {
	case at != nil:
		t = at.In(c.loc)
	case !c.lastTrade.IsZero():
		t = c.lastTrade
	default:
		t = c.now
	}
	if t.Before(c.lastStamp) {
		t = c.lastStamp
	}
	c.lastStamp = t
	return t
}

// ObserveTrade records the execution time of a trade.
func (c *Clock) ObserveTrade(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.lastTrade) {
		c.lastTrade = t.In(c.loc)
	}
}
