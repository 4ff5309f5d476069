package clock

import (
	"context"
	"log/slog"
	"time"
)

// Ticker drives a Clock forward: every tick of wall time the simulated
// time advances by step. Reaching the closing hour jumps to the opening
// hour of the next day.
type Ticker struct {
	clock     *Clock
	tick      time.Duration
	step      time.Duration
	openHour  int
	closeHour int
	logger    *slog.Logger
}

// NewTicker creates a Ticker for c.
func NewTicker(c *Clock, tick, step time.Duration, openHour, closeHour int, logger *slog.Logger) *Ticker {
	return &Ticker{
		clock:     c,
		tick:      tick,
		step:      step,
		openHour:  openHour,
		closeHour: closeHour,
		logger:    logger,
	}
}

// Start launches a background goroutine that advances the clock at the
// configured interval. It stops when ctx is cancelled.
func (t *Ticker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.advance()
			}
		}
	}()
}

// advance moves the clock one step and returns the new simulated time.
func (t *Ticker) advance() time.Time {
	now := t.clock.Now()
	next := now.Add(t.step)

	if next.Hour() >= t.closeHour || next.Day() != now.Day() {
		y, m, d := now.Date()
		next = time.Date(y, m, d+1, t.openHour, 0, 0, 0, t.clock.Location())
		t.logger.Info("market closed, advancing to next session",
			"from", now.Format(time.DateTime),
			"to", next.Format(time.DateTime),
		)
	} else if next.Hour() < t.openHour {
		y, m, d := next.Date()
		next = time.Date(y, m, d, t.openHour, 0, 0, 0, t.clock.Location())
	}

	t.clock.Set(next)
	return next
}
