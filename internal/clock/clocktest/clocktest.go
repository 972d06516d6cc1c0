// Package clocktest builds the Simulated Clock fixtures the interpreter's
// own tests need (and that downstream consumers can reuse) instead of each
// call site re-deriving the same delayed-cancel and backward-travel
// scenarios by hand.
package clocktest

import "github.com/kandev/hsm/internal/clock"

// Recorder captures the order in which scheduled callbacks actually fired,
// for asserting deterministic firing order against a SimulatedClock.
type Recorder struct {
	Fired []string
}

// Schedule records a named firing against the clock at delayMs.
func (r *Recorder) Schedule(c *clock.SimulatedClock, name string, delayMs int64) clock.Token {
	return c.SetTimeout(func() { r.Fired = append(r.Fired, name) }, delayMs)
}

// DelayedCancel builds the scenario from spec §8.2: schedule a callback at
// delayMs and immediately cancel it. It does not advance the clock; the
// caller advances it past the deadline and checks that the returned
// Recorder's Fired list stays empty.
func DelayedCancel(delayMs int64) (*clock.SimulatedClock, *Recorder) {
	c := clock.NewSimulatedClock()
	r := &Recorder{}

	token := r.Schedule(c, "cancelled", delayMs)
	c.ClearTimeout(token)

	return c, r
}

// BackwardTravel builds the scenario from spec §8.7: it returns a clock
// already advanced to 1000, against which the caller checks that moving to
// 500 is rejected and moving to 1000 again is a silent no-op.
func BackwardTravel() *clock.SimulatedClock {
	c := clock.NewSimulatedClock()
	_ = c.Set(1000)
	return c
}
