// Package timer projects a fixed exam duration against wall-clock time.
package timer

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Resolution is the countdown granularity.
const Resolution = time.Second

// Remaining returns the seconds left of a durationMinutes test that started
// at start, as seen at now. It never goes below zero.
func Remaining(start time.Time, durationMinutes int, now time.Time) int {
	elapsed := int(now.Sub(start) / Resolution)
	if elapsed < 0 {
		elapsed = 0
	}
	left := durationMinutes*60 - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// Deadline is the instant at which Remaining reaches zero.
func Deadline(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// Countdown reports the remaining time of one test once per Resolution.
// It holds no state besides its inputs, so it can be rebuilt at any time
// from a persisted start timestamp.
type Countdown struct {
	clock           clock.WithTicker
	start           time.Time
	durationMinutes int
}

// NewCountdown creates a countdown. A nil clock means the real clock.
func NewCountdown(clk clock.WithTicker, start time.Time, durationMinutes int) *Countdown {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Countdown{clock: clk, start: start, durationMinutes: durationMinutes}
}

// Remaining returns the seconds left right now.
func (c *Countdown) Remaining() int {
	return Remaining(c.start, c.durationMinutes, c.clock.Now())
}

// Run calls onTick with the remaining seconds immediately and then on every
// tick, until the value reaches zero or ctx is done. It returns true when
// the countdown expired and false when it was cancelled.
//
// onTick(0) is delivered at most once per Run, but Run itself may be called
// again, so callers must guard any time-up action.
func (c *Countdown) Run(ctx context.Context, onTick func(remaining int)) bool {
	left := c.Remaining()
	if onTick != nil {
		onTick(left)
	}
	if left == 0 {
		return true
	}

	ticker := c.clock.NewTicker(Resolution)
	defer ticker.Stop()

	last := left
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C():
			left = c.Remaining()
			if left > last {
				// Wall clock moved backwards; keep the display monotonic.
				left = last
			}
			last = left
			if onTick != nil {
				onTick(left)
			}
			if left == 0 {
				return true
			}
		}
	}
}
