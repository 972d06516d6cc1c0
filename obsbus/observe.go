package obsbus

import (
	"context"
	"sync"

	"github.com/kandev/hsm"
	"github.com/kandev/hsm/internal/hsmlog"
)

// service is the narrow slice of hsm.Interpreter this package depends on,
// so obsbus never needs more than event/transition notifications to watch
// a running service.
type service interface {
	ID() string
	OnEvent(hsm.EventListener) hsm.ListenerToken
	OnTransition(hsm.TransitionListener) hsm.ListenerToken
}

// Observe wires svc's transitions onto bus under subject: every transition
// is published as an Update, tagged with whichever event most recently
// arrived. Publish errors are logged, never propagated, since a publish
// failure must never affect the interpreter it is observing.
func Observe(svc service, bus Bus, subject string, log *hsmlog.Logger) {
	var mu sync.Mutex
	var lastEventType string

	svc.OnEvent(func(e hsm.Event) {
		mu.Lock()
		lastEventType = string(e.Type)
		mu.Unlock()
	})

	svc.OnTransition(func(state *hsm.State) {
		mu.Lock()
		eventType := lastEventType
		mu.Unlock()

		update := NewUpdate(svc.ID(), eventType, state.Value, state.Context, state.Tree.Done)
		if err := bus.Publish(context.Background(), subject, update); err != nil && log != nil {
			log.Warn("failed to publish transition update")
		}
	})
}
