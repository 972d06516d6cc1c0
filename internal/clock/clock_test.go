package clock

import "testing"

func TestSimulatedClock_FiresWhenDue(t *testing.T) {
	c := NewSimulatedClock()
	fired := false

	c.SetTimeout(func() { fired = true }, 1000)
	c.Increment(999)
	if fired {
		t.Fatal("expected timeout not to fire before its deadline")
	}

	c.Increment(1)
	if !fired {
		t.Fatal("expected timeout to fire once its deadline elapses")
	}
}

func TestSimulatedClock_ClearTimeoutPreventsFiring(t *testing.T) {
	c := NewSimulatedClock()
	fired := false

	token := c.SetTimeout(func() { fired = true }, 500)
	c.ClearTimeout(token)
	c.Increment(1000)

	if fired {
		t.Fatal("expected cleared timeout not to fire")
	}
}

func TestSimulatedClock_FiresInInsertionOrder(t *testing.T) {
	c := NewSimulatedClock()
	var order []int

	c.SetTimeout(func() { order = append(order, 1) }, 100)
	c.SetTimeout(func() { order = append(order, 2) }, 100)
	c.SetTimeout(func() { order = append(order, 3) }, 100)

	c.Increment(100)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("expected %d firings, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected firing order %v, got %v", want, order)
		}
	}
}

func TestSimulatedClock_BackwardTravelRejected(t *testing.T) {
	c := NewSimulatedClock()

	if err := c.Set(1000); err != nil {
		t.Fatalf("unexpected error advancing to 1000: %v", err)
	}
	if err := c.Set(500); err == nil {
		t.Fatal("expected error moving simulated time backwards")
	}

	fired := false
	c.SetTimeout(func() { fired = true }, 0)

	// Setting to the same instant again is a no-op: it must not re-fire
	// timeouts registered for the instant already reached.
	if err := c.Set(1000); err != nil {
		t.Fatalf("unexpected error re-setting to the same instant: %v", err)
	}
	if fired {
		t.Fatal("expected re-setting to the same instant not to flush timeouts registered after it")
	}
}

func TestSimulatedClock_SetFlushesDueTimeouts(t *testing.T) {
	c := NewSimulatedClock()
	fired := false

	c.SetTimeout(func() { fired = true }, 1000)
	if err := c.Set(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatal("expected timeout due exactly at the new now to fire")
	}
}
