// Package timer provides a cancellable periodic timer that is driven by the
// host event loop rather than a goroutine. Callbacks run inside Poll, on the
// caller's thread.
package timer

import "time"

// Timer fires its callback every interval while running. Pausing keeps the
// time left in the current period; cancelling discards it. All methods are
// safe to call in any state.
type Timer struct {
	now       func() time.Time
	fn        func()
	interval  time.Duration
	deadline  time.Time
	remaining time.Duration // time left in the period when paused, 0 if none
	running   bool
}

// New creates a stopped timer using the wall clock.
func New(interval time.Duration, fn func()) *Timer {
	return NewWithClock(interval, time.Now, fn)
}

// NewWithClock creates a stopped timer that reads time from now.
func NewWithClock(interval time.Duration, now func() time.Time, fn func()) *Timer {
	return &Timer{now: now, fn: fn, interval: interval}
}

// Interval returns the period between callbacks.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// SetInterval changes the period. A running timer restarts its current period.
func (t *Timer) SetInterval(d time.Duration) {
	t.interval = d
	t.remaining = 0
	if t.running {
		t.deadline = t.now().Add(d)
	}
}

// Running reports whether the timer is counting down.
func (t *Timer) Running() bool {
	return t.running
}

// Start begins counting. A paused timer resumes the period it was in; a
// running timer is left alone.
func (t *Timer) Start() {
	if t.running {
		return
	}
	wait := t.interval
	if t.remaining > 0 {
		wait = t.remaining
	}
	t.remaining = 0
	t.deadline = t.now().Add(wait)
	t.running = true
}

// Pause stops counting and remembers the time left in the period.
func (t *Timer) Pause() {
	if !t.running {
		return
	}
	t.remaining = t.deadline.Sub(t.now())
	if t.remaining <= 0 {
		t.remaining = time.Nanosecond
	}
	t.running = false
}

// Cancel stops counting and forgets any partial period.
func (t *Timer) Cancel() {
	t.running = false
	t.remaining = 0
}

// Reset restarts the current period so the next callback is a full interval
// away. A stopped timer only loses its paused remainder.
func (t *Timer) Reset() {
	t.remaining = 0
	if t.running {
		t.deadline = t.now().Add(t.interval)
	}
}

// Poll runs the callback if the period has elapsed and schedules the next
// one. It reports whether the callback ran.
func (t *Timer) Poll() bool {
	if !t.running {
		return false
	}
	now := t.now()
	if now.Before(t.deadline) {
		return false
	}
	t.deadline = now.Add(t.interval)
	if t.fn != nil {
		t.fn()
	}
	return true
}
