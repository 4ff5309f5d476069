package clock

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

var testLoc = time.FixedZone("SIM", 9*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, testLoc)
}

func TestClock_StampExplicit(t *testing.T) {
	c := New(at(2, 9, 0), testLoc)

	ts := at(2, 10, 30)
	if got := c.Stamp(&ts); !got.Equal(ts) {
		t.Errorf("Stamp = %v, want %v", got, ts)
	}
}

func TestClock_StampClampsBackwards(t *testing.T) {
	c := New(at(2, 9, 0), testLoc)

	later := at(2, 11, 0)
	earlier := at(2, 10, 0)
	c.Stamp(&later)

	if got := c.Stamp(&earlier); !got.Equal(later) {
		t.Errorf("Stamp(earlier) = %v, want %v", got, later)
	}
}

func TestClock_StampFallsBackToLastTrade(t *testing.T) {
	c := New(at(2, 9, 0), testLoc)
	c.Set(at(2, 15, 0))

	trade := at(2, 12, 0)
	c.ObserveTrade(trade)

	if got := c.Stamp(nil); !got.Equal(trade) {
		t.Errorf("Stamp(nil) = %v, want last trade %v", got, trade)
	}
}

func TestClock_StampFallsBackToNow(t *testing.T) {
	start := at(2, 9, 0)
	c := New(start, testLoc)

	if got := c.Stamp(nil); !got.Equal(start) {
		t.Errorf("Stamp(nil) = %v, want %v", got, start)
	}
}

func TestClock_SetIgnoresBackwards(t *testing.T) {
	c := New(at(2, 12, 0), testLoc)
	c.Set(at(2, 10, 0))

	if got := c.Now(); !got.Equal(at(2, 12, 0)) {
		t.Errorf("Now = %v, want unchanged", got)
	}
}

func TestClock_ObserveTradeKeepsLatest(t *testing.T) {
	c := New(at(2, 9, 0), testLoc)
	c.ObserveTrade(at(2, 12, 0))
	c.ObserveTrade(at(2, 11, 0))

	if got := c.Stamp(nil); !got.Equal(at(2, 12, 0)) {
		t.Errorf("Stamp after trades = %v, want 12:00", got)
	}
}

func TestClock_SessionOpen(t *testing.T) {
	c := New(at(3, 14, 25), testLoc)

	if got := c.SessionOpen(9); !got.Equal(at(3, 9, 0)) {
		t.Errorf("SessionOpen = %v, want %v", got, at(3, 9, 0))
	}
}

func TestStartTime(t *testing.T) {
	wall := time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC) // 11:00 in SIM

	got := StartTime(time.Time{}, wall, testLoc, 9)
	if !got.Equal(at(5, 9, 0)) {
		t.Errorf("StartTime without trades = %v, want %v", got, at(5, 9, 0))
	}

	last := at(4, 16, 42)
	got = StartTime(last, wall, testLoc, 9)
	if !got.Equal(last) {
		t.Errorf("StartTime with trades = %v, want %v", got, last)
	}
}

func newTestTicker(c *Clock) *Ticker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTicker(c, time.Second, time.Minute, 9, 19, logger)
}

func TestTicker_AdvanceStep(t *testing.T) {
	c := New(at(2, 9, 0), testLoc)
	tk := newTestTicker(c)

	if got := tk.advance(); !got.Equal(at(2, 9, 1)) {
		t.Errorf("advance = %v, want 09:01", got)
	}
	if !c.Now().Equal(at(2, 9, 1)) {
		t.Errorf("clock not moved: %v", c.Now())
	}
}

func TestTicker_AdvanceJumpsAtClose(t *testing.T) {
	c := New(at(2, 18, 59), testLoc)
	tk := newTestTicker(c)

	if got := tk.advance(); !got.Equal(at(3, 9, 0)) {
		t.Errorf("advance at close = %v, want next day 09:00", got)
	}
}

func TestTicker_AdvanceBeforeOpen(t *testing.T) {
	c := New(at(2, 6, 0), testLoc)
	tk := newTestTicker(c)

	if got := tk.advance(); !got.Equal(at(2, 9, 0)) {
		t.Errorf("advance before open = %v, want 09:00", got)
	}
}

func TestTicker_AdvanceMonthEnd(t *testing.T) {
	c := New(time.Date(2026, 3, 31, 18, 59, 0, 0, testLoc), testLoc)
	tk := newTestTicker(c)

	want := time.Date(2026, 4, 1, 9, 0, 0, 0, testLoc)
	if got := tk.advance(); !got.Equal(want) {
		t.Errorf("advance = %v, want %v", got, want)
	}
}
