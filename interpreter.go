// Package hsm is the runtime interpreter for a compiled hierarchical
// statechart: it drives a Machine against a live event stream, executes its
// actions, schedules delayed events, supervises child actors, and publishes
// state updates to listeners and, optionally, to devtools and an external
// bus. The machine-definition compiler itself is out of scope; hsm only
// ever consumes the Machine contract.
package hsm

import (
	"fmt"
	"sync"

	"github.com/kandev/hsm/internal/clock"
	"github.com/kandev/hsm/internal/scheduler"
	"github.com/kandev/hsm/internal/timers"
)

type (
	TransitionListener func(state *State)
	EventListener      func(event Event)
	SendListener       func(event Event)
	ContextListener    func(ctx any, prevContext any)
	DoneListener       func(event Event)
	StopListener       func()
)

// Options configures a Service. New merges the caller's options over
// DefaultOptions; the library never reads ambient/global configuration
// itself. Execute and DeferEvents both default to true; since Go's zero
// value for bool is false, they are *bool here so an omitted field means
// "use the default" rather than "turn it off" — set them with BoolPtr(false)
// to opt out.
type Options struct {
	// Execute, if false, turns the interpreter into a pure state reducer:
	// actions are never run, only computed and published to observers.
	Execute *bool

	// DeferEvents controls what happens when Send is called before Start:
	// true queues the event for the initial update, false panics.
	DeferEvents *bool

	// Clock is the timer capability delayed sends are scheduled against.
	Clock clock.Clock

	// Logger receives log-action output and scheduler/actor diagnostics.
	Logger func(msg string, args ...any)

	// Parent is set by the Actor Supervisor when spawning a child service;
	// application code constructing a top-level service leaves it nil.
	Parent *Interpreter

	// ID overrides the service id (default: machine.ID()).
	ID string

	// DevTools, if non-nil, receives Init/Send notifications ahead of
	// every other listener.
	DevTools Connector
}

// BoolPtr returns a pointer to b, for setting Options.Execute or
// Options.DeferEvents explicitly.
func BoolPtr(b bool) *bool { return &b }

// resolvedOptions is Options after defaults are applied, with Execute and
// DeferEvents flattened to plain bools.
type resolvedOptions struct {
	Execute     bool
	DeferEvents bool
	Clock       clock.Clock
	Logger      func(msg string, args ...any)
	Parent      *Interpreter
	ID          string
	DevTools    Connector
}

func mergeOptions(opts Options) resolvedOptions {
	merged := resolvedOptions{
		Execute:     true,
		DeferEvents: true,
		Clock:       clock.NewRealClock(),
		Logger:      func(string, ...any) {},
	}

	if opts.Execute != nil {
		merged.Execute = *opts.Execute
	}
	if opts.DeferEvents != nil {
		merged.DeferEvents = *opts.DeferEvents
	}
	if opts.Clock != nil {
		merged.Clock = opts.Clock
	}
	if opts.Logger != nil {
		merged.Logger = opts.Logger
	}
	merged.Parent = opts.Parent
	merged.ID = opts.ID
	merged.DevTools = opts.DevTools

	return merged
}

// Interpreter is a live binding of a Machine to a runtime: the Service
// described in the external interface. It owns the current state and
// orchestrates the scheduler, clock, timer registry, action executor and
// actor supervisor.
type Interpreter struct {
	machine Machine
	id      string
	parent  *Interpreter

	options resolvedOptions

	mu          sync.Mutex
	state       *State
	initialized bool

	transitionListeners listenerSet[TransitionListener]
	eventListeners      listenerSet[EventListener]
	sendListeners       listenerSet[SendListener]
	contextListeners    listenerSet[ContextListener]
	doneListeners       listenerSet[DoneListener]
	stopListeners       listenerSet[StopListener]

	childrenMu sync.Mutex
	children   map[string]*Actor
	forwardTo  map[string]bool

	scheduler *scheduler.Scheduler
	timers    *timers.Registry
}

// New constructs a Service bound to machine, not yet started.
func New(machine Machine, opts Options) *Interpreter {
	merged := mergeOptions(opts)

	id := merged.ID
	if id == "" {
		id = machine.ID()
	}

	return &Interpreter{
		machine:   machine,
		id:        id,
		parent:    merged.Parent,
		options:   merged,
		children:  make(map[string]*Actor),
		forwardTo: make(map[string]bool),
		scheduler: scheduler.New(),
		timers:    timers.New(),
	}
}

// ID returns the service's identifier.
func (svc *Interpreter) ID() string { return svc.id }

// State returns the current state. Before Start this is the machine's
// initial state, per invariant 1: unobservable through transition
// listeners, but readable here.
func (svc *Interpreter) State() *State {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.state != nil {
		return svc.state
	}
	return svc.machine.InitialState()
}

// InitialState returns the machine's initial state, independent of whatever
// the service's current state is.
func (svc *Interpreter) InitialState() *State {
	return svc.machine.InitialState()
}

// Sender returns a closure that sends event to the service when called,
// for wiring into callback-style APIs that expect a bare func().
func (svc *Interpreter) Sender(event Event) func() {
	return func() { svc.Send(event, nil) }
}

// NextState computes the state event would produce from the current state,
// without mutating the service. Calling it any number of times with the
// same inputs returns value-equal states.
func (svc *Interpreter) NextState(event Event) *State {
	return svc.machine.Transition(svc.State(), event)
}

// Start resolves the initial state (the machine's own, unless initial is
// supplied) and runs it as the scheduler's initial update. After Start
// returns, initialized is true and any pre-start deferred sends have been
// processed.
func (svc *Interpreter) Start(initial *State) *Interpreter {
	resolved := svc.machine.InitialState()
	if initial != nil {
		resolved = svc.machine.ResolveState(initial)
	}

	svc.mu.Lock()
	svc.initialized = true
	svc.mu.Unlock()

	if svc.options.DevTools != nil {
		svc.options.DevTools.Init(resolved)
	}

	svc.scheduler.Initialize(func() {
		pushSpawnContext(svc)
		svc.update(resolved, NewEvent(EventInit, nil))
		popSpawnContext()
	})

	return svc
}

// Stop empties every listener set (firing stop-listeners exactly once as
// they are removed), stops every child, cancels every outstanding timer,
// and clears initialized. Safe to call more than once.
func (svc *Interpreter) Stop() {
	svc.mu.Lock()
	svc.initialized = false
	svc.mu.Unlock()

	svc.childrenMu.Lock()
	children := svc.children
	svc.children = make(map[string]*Actor)
	svc.forwardTo = make(map[string]bool)
	svc.childrenMu.Unlock()

	for _, child := range children {
		child.Stop()
	}

	svc.timers.CancelAll(svc.options.Clock)

	stopListeners := svc.stopListeners.drain()
	svc.transitionListeners.drain()
	svc.eventListeners.drain()
	svc.sendListeners.drain()
	svc.contextListeners.drain()
	svc.doneListeners.drain()

	for _, l := range stopListeners {
		l()
	}
}

// Off removes the listener identified by token from whichever set it was
// registered in.
func (svc *Interpreter) Off(token ListenerToken) {
	svc.transitionListeners.remove(token)
	svc.eventListeners.remove(token)
	svc.sendListeners.remove(token)
	svc.contextListeners.remove(token)
	svc.doneListeners.remove(token)
	svc.stopListeners.remove(token)
}

func (svc *Interpreter) OnTransition(l TransitionListener) ListenerToken {
	return svc.transitionListeners.add(l)
}

func (svc *Interpreter) OnEvent(l EventListener) ListenerToken {
	return svc.eventListeners.add(l)
}

func (svc *Interpreter) OnSend(l SendListener) ListenerToken {
	return svc.sendListeners.add(l)
}

func (svc *Interpreter) OnChange(l ContextListener) ListenerToken {
	return svc.contextListeners.add(l)
}

func (svc *Interpreter) OnDone(l DoneListener) ListenerToken {
	return svc.doneListeners.add(l)
}

func (svc *Interpreter) OnStop(l StopListener) ListenerToken {
	return svc.stopListeners.add(l)
}

// Send delivers a single event to the service. Pre-start behavior depends
// on DeferEvents: if true, the event is queued for processing after Start;
// if false, Send panics with ErrNotStarted.
func (svc *Interpreter) Send(event Event, payload map[string]any) {
	if payload != nil {
		merged := make(map[string]any, len(event.Payload)+len(payload))
		for k, v := range event.Payload {
			merged[k] = v
		}
		for k, v := range payload {
			merged[k] = v
		}
		event.Payload = merged
	}

	svc.notifySend(event)

	svc.mu.Lock()
	initialized := svc.initialized
	current := svc.state
	svc.mu.Unlock()

	if !initialized {
		if !svc.options.DeferEvents {
			panic(fmt.Errorf("%w: service %q", ErrNotStarted, svc.id))
		}
		svc.options.Logger("send before start, deferring", "service", svc.id, "event", event.Type)
	}

	// Error-execution events the current state cannot handle are re-raised
	// synchronously rather than silently swallowed.
	if event.Type == EventErrorExecution && current != nil && !current.acceptsEvent(event.Type) {
		if cause, ok := event.Payload["error"].(error); ok {
			panic(cause)
		}
	}

	svc.scheduler.Schedule(func() {
		pushSpawnContext(svc)
		next := svc.machine.Transition(svc.State(), event)
		svc.update(next, event)
		popSpawnContext()
		svc.forward(event)
	})
}

// Batch folds events through the machine as a single scheduled task,
// carrying forward any actions an earlier sub-step in the fold did not
// execute, and producing exactly one transition-listener notification for
// the whole batch.
func (svc *Interpreter) Batch(events []Event) {
	if len(events) == 0 {
		return
	}

	for _, e := range events {
		svc.notifySend(e)
	}

	svc.scheduler.Schedule(func() {
		pushSpawnContext(svc)
		current := svc.State()
		var pending []Action
		var last Event

		for _, event := range events {
			next := svc.machine.Transition(current, event)
			if len(pending) > 0 {
				next = next.withActions(append(append([]Action{}, pending...), next.Actions...))
			}
			if svc.options.Execute {
				svc.executeActions(next, event)
				pending = nil
			} else {
				pending = next.Actions
			}
			current = next
			last = event
			svc.forward(event)
		}

		popSpawnContext()
		svc.commit(current, last)
	})
}

// update runs one scheduled step's publication: execute actions (if
// enabled) then commit, notifying listeners and stopping on a done state.
func (svc *Interpreter) update(state *State, event Event) {
	if svc.options.Execute {
		svc.executeActions(state, event)
	}
	svc.commit(state, event)
}

// commit assigns state and notifies listeners in the prescribed order:
// devtools, event-listeners, transition-listeners, context-listeners, and
// finally done-listeners (followed by Stop) if the new state is done. The
// batch path calls commit once at the end of its fold, having already run
// each sub-step's actions itself.
func (svc *Interpreter) commit(state *State, event Event) {
	svc.mu.Lock()
	prev := svc.state
	svc.state = state
	svc.mu.Unlock()

	var prevContext any
	if prev != nil {
		prevContext = prev.Context
	} else if state.History != nil {
		prevContext = state.History.Context
	}

	if svc.options.DevTools != nil {
		svc.options.DevTools.Send(event, state)
	}

	if event.Type != "" {
		for _, l := range svc.eventListeners.snapshot() {
			l(event)
		}
	}

	for _, l := range svc.transitionListeners.snapshot() {
		l(state)
	}

	for _, l := range svc.contextListeners.snapshot() {
		l(state.Context, prevContext)
	}

	if state.Tree.Done {
		var doneData any
		if state.Tree.GetDoneData != nil {
			doneData = state.Tree.GetDoneData(state.Context, event)
		}
		doneEvent := NewEvent(DoneInvokeType(svc.id), map[string]any{"data": doneData})
		for _, l := range svc.doneListeners.snapshot() {
			l(doneEvent)
		}
		svc.Stop()
	}
}

func (svc *Interpreter) notifySend(event Event) {
	for _, l := range svc.sendListeners.snapshot() {
		l(event)
	}
}

// executeActions runs a state's actions in order against (context, event).
func (svc *Interpreter) executeActions(state *State, event Event) {
	for _, action := range state.Actions {
		svc.executeAction(state, action, event)
	}
}

