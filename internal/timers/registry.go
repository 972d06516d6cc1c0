// Package timers tracks outstanding delayed sends keyed by send-id so they
// can be cancelled by id or swept in bulk when a service stops. Delay value
// resolution (string lookup, numeric literal, or a function of context and
// event) is the action executor's job; this package only owns the
// send-id -> clock token mapping and invariant 3 (every entry corresponds to
// a live timer).
package timers

import (
	"sync"

	"github.com/kandev/hsm/internal/clock"
)

// Registry maps send-id to clock token.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]clock.Token
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tokens: make(map[string]clock.Token)}
}

// Schedule asks c to fire fn after ms milliseconds and records the
// resulting token under sendID, replacing any existing entry for that id.
func (r *Registry) Schedule(c clock.Clock, sendID string, ms int64, fn func()) {
	token := c.SetTimeout(fn, ms)

	r.mu.Lock()
	old, replaced := r.tokens[sendID]
	r.tokens[sendID] = token
	r.mu.Unlock()

	if replaced {
		c.ClearTimeout(old)
	}
}

// Cancel clears the clock token registered under sendID, if any, and
// removes the mapping. Cancelling an unknown send-id is a no-op.
func (r *Registry) Cancel(c clock.Clock, sendID string) {
	r.mu.Lock()
	token, ok := r.tokens[sendID]
	if ok {
		delete(r.tokens, sendID)
	}
	r.mu.Unlock()

	if ok {
		c.ClearTimeout(token)
	}
}

// CancelAll clears every outstanding timer, used when a service stops.
func (r *Registry) CancelAll(c clock.Clock) {
	r.mu.Lock()
	tokens := r.tokens
	r.tokens = make(map[string]clock.Token)
	r.mu.Unlock()

	for _, token := range tokens {
		c.ClearTimeout(token)
	}
}

// Len reports the number of outstanding timers, for invariant assertions in
// tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
