// Package obsbus publishes interpreter state updates to external observers
// over a pluggable message bus. It supplements spec.md's in-process listener
// callbacks (OnTransition, OnEvent, ...) with an optional out-of-process view:
// Observe registers a transition listener that publishes a read-only Update
// onto a subject, where any number of external processes can watch a running
// interpreter without being able to drive it.
//
// This is deliberately one-directional. Nothing in this package can send an
// event back into an interpreter: doing so would turn "publish updates to
// external observers" into networked actors or remote supervision, both
// explicit non-goals. For that reason this bus drops the teacher's
// QueueSubscribe (load-balanced command delivery) and Request/reply
// (round-trip RPC) shapes entirely; only fire-and-forget Publish/Subscribe
// survive.
package obsbus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Update is a read-only snapshot of one interpreter transition.
type Update struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"serviceId"` // the interpreter instance that produced this update
	EventType string    `json:"eventType"` // the event type that triggered the transition, if any
	Value     any       `json:"value"`     // the resulting state value (string or map for nested states)
	Context   any       `json:"context"`   // the resulting extended state
	Done      bool      `json:"done"`      // whether the machine reached a final state
	Timestamp time.Time `json:"timestamp"`
}

// NewUpdate builds an Update with a fresh id and the current time.
func NewUpdate(serviceID, eventType string, value, ctxValue any, done bool) *Update {
	return &Update{
		ID:        uuid.New().String(),
		ServiceID: serviceID,
		EventType: eventType,
		Value:     value,
		Context:   ctxValue,
		Done:      done,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes an Update delivered on a subject.
type Handler func(ctx context.Context, update *Update) error

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// Bus is the pluggable transport updates are published over. MemoryBus and
// NATSBus both implement it; a transition observer never knows which one it
// is talking to.
type Bus interface {
	// Publish sends an update to a subject.
	Publish(ctx context.Context, subject string, update *Update) error

	// Subscribe creates a subscription to a subject pattern.
	Subscribe(subject string, handler Handler) (Subscription, error)

	// Close releases the bus's resources.
	Close()

	// IsConnected reports whether the bus can currently deliver updates.
	IsConnected() bool
}
