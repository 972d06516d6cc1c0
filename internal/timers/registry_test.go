package timers

import (
	"testing"

	"github.com/kandev/hsm/internal/clock"
	"github.com/kandev/hsm/internal/clock/clocktest"
)

func TestRegistry_ScheduleAndCancel(t *testing.T) {
	c := clock.NewSimulatedClock()
	r := New()
	fired := false

	r.Schedule(c, "t1", 1000, func() { fired = true })
	if r.Len() != 1 {
		t.Fatalf("expected 1 outstanding timer, got %d", r.Len())
	}

	r.Cancel(c, "t1")
	if r.Len() != 0 {
		t.Fatalf("expected 0 outstanding timers after cancel, got %d", r.Len())
	}

	c.Increment(2000)
	if fired {
		t.Fatal("expected cancelled timer not to fire")
	}
}

func TestRegistry_CancelUnknownIsNoOp(t *testing.T) {
	c := clock.NewSimulatedClock()
	r := New()

	r.Cancel(c, "missing")
	if r.Len() != 0 {
		t.Fatalf("expected registry to remain empty, got %d", r.Len())
	}
}

func TestRegistry_CancelAllClearsEveryTimer(t *testing.T) {
	c := clock.NewSimulatedClock()
	r := New()
	fireCount := 0

	r.Schedule(c, "a", 100, func() { fireCount++ })
	r.Schedule(c, "b", 200, func() { fireCount++ })
	r.Schedule(c, "c", 300, func() { fireCount++ })

	r.CancelAll(c)
	if r.Len() != 0 {
		t.Fatalf("expected registry to be empty after CancelAll, got %d", r.Len())
	}

	c.Increment(1000)
	if fireCount != 0 {
		t.Fatalf("expected no timers to fire after CancelAll, got %d firings", fireCount)
	}
}

func TestRegistry_ScheduleAgainstClockAlreadyAdvanced(t *testing.T) {
	c := clocktest.BackwardTravel() // now == 1000
	r := New()
	fired := false

	r.Schedule(c, "t1", 500, func() { fired = true })
	if err := c.Set(1499); err != nil {
		t.Fatalf("unexpected error advancing clock: %v", err)
	}
	if fired {
		t.Fatal("expected timer not to fire before its deadline")
	}

	if err := c.Set(1500); err != nil {
		t.Fatalf("unexpected error advancing clock: %v", err)
	}
	if !fired {
		t.Fatal("expected timer scheduled against an already-advanced clock to fire at start+ms")
	}
}

func TestRegistry_ScheduleReplacesExistingEntry(t *testing.T) {
	c := clock.NewSimulatedClock()
	r := New()
	var fired string

	r.Schedule(c, "t1", 1000, func() { fired = "first" })
	r.Schedule(c, "t1", 1000, func() { fired = "second" })

	if r.Len() != 1 {
		t.Fatalf("expected a single entry for a reused send-id, got %d", r.Len())
	}

	c.Increment(1000)
	if fired != "second" {
		t.Fatalf("expected the replacement schedule to fire, got %q", fired)
	}
}
