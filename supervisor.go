package hsm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// sendTo routes event to target: the parent sentinel routes to svc.parent,
// anything else is looked up in children. Addressing a named child that
// does not exist panics (a usage error); a missing parent is a no-op dev
// warning, since "send to parent" from a top-level service is common and
// harmless.
func (svc *Interpreter) sendTo(event Event, target string) {
	if target == ParentTarget {
		if svc.parent == nil {
			svc.options.Logger("sendTo parent with no parent service", "service", svc.id)
			return
		}
		svc.parent.Send(event, nil)
		return
	}

	svc.childrenMu.Lock()
	child, ok := svc.children[target]
	svc.childrenMu.Unlock()

	if !ok {
		panic(fmt.Errorf("%w: %q", ErrUnknownChild, target))
	}
	child.Send(event)
}

// forward delivers event to every auto-forwarding child. A forwardTo entry
// with no matching child is an invariant violation.
func (svc *Interpreter) forward(event Event) {
	svc.childrenMu.Lock()
	targets := make([]string, 0, len(svc.forwardTo))
	for id := range svc.forwardTo {
		targets = append(targets, id)
	}
	svc.childrenMu.Unlock()

	for _, id := range targets {
		svc.childrenMu.Lock()
		child, ok := svc.children[id]
		svc.childrenMu.Unlock()
		if !ok {
			panic(fmt.Errorf("%w: %q", ErrForwardMissingChild, id))
		}
		child.Send(event)
	}
}

// stopChild stops and removes the child named id, if present.
func (svc *Interpreter) stopChild(id string) {
	svc.childrenMu.Lock()
	child, ok := svc.children[id]
	delete(svc.children, id)
	delete(svc.forwardTo, id)
	svc.childrenMu.Unlock()

	if ok {
		child.Stop()
	}
}

func (svc *Interpreter) addChild(id string, actor *Actor, autoForward bool) {
	svc.childrenMu.Lock()
	svc.children[id] = actor
	if autoForward {
		svc.forwardTo[id] = true
	}
	svc.childrenMu.Unlock()
}

// spawnChildService constructs a nested Interpreter with parent = svc,
// subscribes to it if requested (forwarding an xstate.update event per
// child transition), always forwards the child's completion to svc, then
// starts it.
func (svc *Interpreter) spawnChildService(id string, machine Machine, subscribe bool, autoForward bool) *Actor {
	return svc.spawnChildServiceWithInitial(id, machine, subscribe, autoForward, nil)
}

// spawnChildServiceWithInitial is spawnChildService with an optional
// initial state override, used when an invoke action's activity carries
// data to rebind the child's starting context to.
func (svc *Interpreter) spawnChildServiceWithInitial(id string, machine Machine, subscribe bool, autoForward bool, initial *State) *Actor {
	child := New(machine, Options{
		Parent: svc,
		ID:     id,
		Clock:  svc.options.Clock,
		Logger: svc.options.Logger,
	})

	if subscribe {
		child.OnTransition(func(state *State) {
			svc.Send(NewEvent(EventXStateUpdate, map[string]any{
				"id":    id,
				"state": state,
			}), nil)
		})
	}

	child.OnDone(func(event Event) {
		svc.Send(NewEvent(DoneInvokeType(id), event.Payload), nil)
	})

	actor := &Actor{
		ID:   id,
		send: func(e Event) { child.Send(e, nil) },
		stop: child.Stop,
	}
	svc.addChild(id, actor, autoForward)

	child.Start(initial)
	return actor
}

// spawnPromise supervises a Promise invocation source: it runs on its own
// goroutine and, unless cancelled, reports its result back to svc as
// done.invoke.<id> or error.execution.
func (svc *Interpreter) spawnPromise(id string, promise Promise) *Actor {
	cancelled := make(chan struct{})
	var closeOnce boolFlag

	actor := &Actor{
		ID:   id,
		send: nil, // promises are input-less
		stop: func() {
			closeOnce.once(func() { close(cancelled) })
		},
	}
	svc.addChild(id, actor, false)

	go func() {
		value, err := promise(context.Background())

		select {
		case <-cancelled:
			return
		default:
		}

		if err != nil {
			svc.reportInvocationError(id, err)
			return
		}

		svc.Send(doneInvokeEvent(id, value), nil)
	}()

	return actor
}

// reportInvocationError sends the synthesized error.execution event back
// to svc. If the self-send re-raises (the machine has no handler for it),
// an unhandled-exception diagnostic is logged and, if the machine is
// strict, the service stops.
func (svc *Interpreter) reportInvocationError(childID string, cause error) {
	defer func() {
		if r := recover(); r != nil {
			svc.options.Logger("unhandled exception on invocation",
				"service", svc.id, "child", childID, "error", r)
			if svc.machine.Options().Strict {
				svc.Stop()
			}
		}
	}()

	svc.Send(errorExecutionEvent(childID, cause), nil)
}

// spawnCallback supervises a CallbackSource: it is invoked once with a
// receive function (events into svc) and a listener-registration function,
// and its return value, if any, becomes the child's stop handle. The
// handle's Send dispatches to whatever listener the callback most recently
// registered.
func (svc *Interpreter) spawnCallback(id string, source CallbackSource) *Actor {
	var currentListener ListenerFunc

	receive := func(event Event) {
		svc.Send(event, nil)
	}
	registerListener := func(l ListenerFunc) {
		currentListener = l
	}

	var stop func()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("callback invocation panicked: %v", r)
				svc.reportInvocationError(id, err)
			}
		}()
		stop = source(receive, registerListener)
	}()

	actor := &Actor{
		ID: id,
		send: func(e Event) {
			if currentListener != nil {
				currentListener(e)
			}
		},
		stop: stop,
	}
	svc.addChild(id, actor, false)
	return actor
}

// spawnActivity supervises a non-invoke activity: look up its
// implementation by type, run it, and capture the optional dispose
// function as the child's stop handle. Send is always a no-op.
func (svc *Interpreter) spawnActivity(activity ActivityRef) *Actor {
	impl, ok := svc.machine.Options().Activities[activity.Type]
	if !ok {
		svc.options.Logger("unknown activity implementation", "service", svc.id, "type", activity.Type)
		return nil
	}

	dispose := impl(svc.State().Context, activity)

	actor := &Actor{ID: activity.ID, stop: dispose}
	svc.addChild(activity.ID, actor, false)
	return actor
}

// Spawn constructs a subscribed child service of machine under svc,
// returning a lightweight descriptor that can send it events. Unlike the
// package-level Spawn helper, this is callable on any held *Interpreter, not
// only from within a transition's action executor.
func (svc *Interpreter) Spawn(machine Machine, id string) SpawnedRef {
	return svc.spawn(machine, id)
}

// spawn implements the top-level Spawn helper: construct a subscribed
// child service of machine under svc, returning a lightweight descriptor.
func (svc *Interpreter) spawn(machine Machine, id string) SpawnedRef {
	if id == "" {
		id = machine.ID() + "-" + uuid.New().String()
	}
	actor := svc.spawnChildService(id, machine, true, false)
	return SpawnedRef{
		ID:     id,
		Parent: svc,
		send:   actor.send,
	}
}

// SpawnedRef is the lightweight {id, parent, send} descriptor the Spawn
// helper returns.
type SpawnedRef struct {
	ID     string
	Parent *Interpreter
	send   func(Event)
}

// Send delivers an event to the spawned child.
func (r SpawnedRef) Send(event Event) {
	if r.send != nil {
		r.send(event)
	}
}

// boolFlag guards a side effect that must run at most once, used for
// promise-child cancellation without pulling in sync.Once's heavier zero
// value semantics for such a small guard.
type boolFlag struct {
	done bool
}

func (f *boolFlag) once(fn func()) {
	if f.done {
		return
	}
	f.done = true
	fn()
}
