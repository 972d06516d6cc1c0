package clocktest_test

import (
	"testing"

	"github.com/kandev/hsm/internal/clock/clocktest"
)

func TestDelayedCancel_NeverFires(t *testing.T) {
	c, r := clocktest.DelayedCancel(1000)

	c.Increment(5000)

	if len(r.Fired) != 0 {
		t.Fatalf("expected no firings after cancel, got %v", r.Fired)
	}
}

func TestDelayedCancel_UnrelatedTimeoutStillFires(t *testing.T) {
	c, r := clocktest.DelayedCancel(1000)

	r.Schedule(c, "still-pending", 500)
	c.Increment(5000)

	if len(r.Fired) != 1 || r.Fired[0] != "still-pending" {
		t.Fatalf("expected only the uncancelled timeout to fire, got %v", r.Fired)
	}
}

func TestBackwardTravel_RejectsEarlierInstant(t *testing.T) {
	c := clocktest.BackwardTravel()

	if err := c.Set(500); err == nil {
		t.Fatal("expected moving simulated time backwards to be rejected")
	}
	if err := c.Set(1000); err != nil {
		t.Fatalf("expected re-setting to the same instant to be a no-op, got %v", err)
	}
}
