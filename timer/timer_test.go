package timer

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTimer(interval time.Duration) (*Timer, *fakeClock, *int) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	fired := 0
	tm := NewWithClock(interval, clock.now, func() { fired++ })
	return tm, clock, &fired
}

func TestPollFiresEachInterval(t *testing.T) {
	tm, clock, fired := newTestTimer(time.Second)
	tm.Start()

	clock.advance(999 * time.Millisecond)
	if tm.Poll() {
		t.Fatal("fired before the interval elapsed")
	}
	clock.advance(time.Millisecond)
	if !tm.Poll() {
		t.Fatal("did not fire at the deadline")
	}
	clock.advance(time.Second)
	tm.Poll()
	if *fired != 2 {
		t.Errorf("fired %d times, want 2", *fired)
	}
}

func TestStoppedTimerNeverFires(t *testing.T) {
	tm, clock, fired := newTestTimer(time.Second)
	clock.advance(time.Hour)
	if tm.Poll() || *fired != 0 {
		t.Error("timer fired without being started")
	}
}

func TestCancelAndPauseAreIdempotent(t *testing.T) {
	tm, _, _ := newTestTimer(time.Second)
	tm.Cancel()
	tm.Pause()
	tm.Cancel()
	if tm.Running() {
		t.Error("timer should not be running")
	}
}

func TestPauseResumesRemainder(t *testing.T) {
	tm, clock, fired := newTestTimer(10 * time.Second)
	tm.Start()
	clock.advance(7 * time.Second)
	tm.Pause()

	clock.advance(time.Hour)
	tm.Poll()
	if *fired != 0 {
		t.Fatal("paused timer fired")
	}

	tm.Start()
	clock.advance(2 * time.Second)
	if tm.Poll() {
		t.Fatal("fired before the remaining 3s elapsed")
	}
	clock.advance(time.Second)
	if !tm.Poll() {
		t.Error("did not fire after the remaining 3s")
	}
}

func TestCancelDropsRemainder(t *testing.T) {
	tm, clock, _ := newTestTimer(10 * time.Second)
	tm.Start()
	clock.advance(7 * time.Second)
	tm.Pause()
	tm.Cancel()

	tm.Start()
	clock.advance(3 * time.Second)
	if tm.Poll() {
		t.Error("cancelled timer resumed the old period")
	}
}

func TestResetRestartsPhase(t *testing.T) {
	tm, clock, _ := newTestTimer(10 * time.Second)
	tm.Start()
	clock.advance(9 * time.Second)
	tm.Reset()
	clock.advance(9 * time.Second)
	if tm.Poll() {
		t.Fatal("fired before a full interval after reset")
	}
	clock.advance(time.Second)
	if !tm.Poll() {
		t.Error("did not fire a full interval after reset")
	}
}

func TestSetIntervalRestartsRunningTimer(t *testing.T) {
	tm, clock, _ := newTestTimer(10 * time.Second)
	tm.Start()
	clock.advance(5 * time.Second)
	tm.SetInterval(2 * time.Second)
	if tm.Interval() != 2*time.Second {
		t.Fatalf("interval = %v", tm.Interval())
	}
	clock.advance(2 * time.Second)
	if !tm.Poll() {
		t.Error("did not fire on the new interval")
	}
}
