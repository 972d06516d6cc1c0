package hsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kandev/hsm/internal/clock"
)

// fakeMachine is a hand-wired Machine for exercising the interpreter without
// a real compiler.
type fakeMachine struct {
	id         string
	init       *State
	resolve    func(partial *State) *State
	transition func(state *State, event Event) *State
	options    MachineOptions
}

func (m *fakeMachine) ID() string           { return m.id }
func (m *fakeMachine) InitialState() *State { return m.init }

func (m *fakeMachine) ResolveState(partial *State) *State {
	if m.resolve != nil {
		return m.resolve(partial)
	}
	return partial
}

func (m *fakeMachine) Transition(state *State, event Event) *State {
	return m.transition(state, event)
}

func (m *fakeMachine) Options() MachineOptions { return m.options }

func TestSend_BeforeStartIsDeferredByDefault(t *testing.T) {
	m := &fakeMachine{
		id:   "toggle",
		init: &State{Value: "idle", NextEvents: []EventType{"GO"}},
	}
	m.transition = func(s *State, e Event) *State {
		if e.Type == "GO" {
			return &State{Value: "running"}
		}
		return s
	}

	svc := New(m, Options{})
	svc.Send(NewEvent("GO", nil), nil)
	svc.Start(nil)

	if got := svc.State().Value; got != "running" {
		t.Fatalf("state = %v, want running", got)
	}
}

func TestSend_BeforeStartPanicsWhenDeferDisabled(t *testing.T) {
	m := &fakeMachine{
		id:   "toggle",
		init: &State{Value: "idle"},
	}
	m.transition = func(s *State, e Event) *State { return s }

	svc := New(m, Options{DeferEvents: BoolPtr(false)})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic, got none")
		}
		if !errors.Is(r.(error), ErrNotStarted) {
			t.Fatalf("panic = %v, want ErrNotStarted", r)
		}
	}()

	svc.Send(NewEvent("GO", nil), nil)
}

func TestDelayedSend_CancelBeforeFiring(t *testing.T) {
	simClock := clock.NewSimulatedClock()

	m := &fakeMachine{
		id: "timer",
		init: &State{
			Value: "waiting",
			Actions: []Action{
				{Tag: ActionSend, SendID: "t1", Delay: &Delay{Ms: 1000}, Event: NewEvent("FIRE", nil)},
			},
			NextEvents: []EventType{"CANCEL"},
		},
	}
	m.transition = func(s *State, e Event) *State {
		switch e.Type {
		case "CANCEL":
			return &State{Value: "cancelled", Actions: []Action{
				{Tag: ActionCancel, CancelSendID: "t1"},
			}}
		case "FIRE":
			return &State{Value: "fired"}
		}
		return s
	}

	var sawFire bool
	svc := New(m, Options{Clock: simClock})
	svc.OnEvent(func(e Event) {
		if e.Type == "FIRE" {
			sawFire = true
		}
	})

	svc.Start(nil)
	svc.Send(NewEvent("CANCEL", nil), nil)
	simClock.Increment(2000)

	if sawFire {
		t.Fatal("FIRE was delivered despite cancellation")
	}
	if got := svc.State().Value; got != "cancelled" {
		t.Fatalf("state = %v, want cancelled", got)
	}
}

func TestDelayedSend_FiresWhenNotCancelled(t *testing.T) {
	simClock := clock.NewSimulatedClock()

	m := &fakeMachine{
		id: "timer",
		init: &State{
			Value: "waiting",
			Actions: []Action{
				{Tag: ActionSend, SendID: "t1", Delay: &Delay{Ms: 500}, Event: NewEvent("FIRE", nil)},
			},
		},
	}
	m.transition = func(s *State, e Event) *State {
		if e.Type == "FIRE" {
			return &State{Value: "fired"}
		}
		return s
	}

	svc := New(m, Options{Clock: simClock})
	svc.Start(nil)
	simClock.Increment(500)

	if got := svc.State().Value; got != "fired" {
		t.Fatalf("state = %v, want fired", got)
	}
}

func TestBatch_SingleTransitionNotificationForMultipleEvents(t *testing.T) {
	type counterCtx struct{ count int }

	m := &fakeMachine{
		id:   "counter",
		init: &State{Value: "counting", Context: &counterCtx{}},
	}
	m.transition = func(s *State, e Event) *State {
		c := s.Context.(*counterCtx)
		return &State{Value: "counting", Context: &counterCtx{count: c.count + 1}}
	}

	svc := New(m, Options{})
	svc.Start(nil)

	var notifications int
	svc.OnTransition(func(s *State) { notifications++ })

	svc.Batch([]Event{
		NewEvent("INC", nil),
		NewEvent("INC", nil),
		NewEvent("INC", nil),
	})

	if notifications != 1 {
		t.Fatalf("notifications = %d, want 1", notifications)
	}
	final := svc.State().Context.(*counterCtx)
	if final.count != 3 {
		t.Fatalf("count = %d, want 3", final.count)
	}
}

func fetchMachine(factory ServiceFactory, strict bool, acceptsError bool) *fakeMachine {
	loadingEvents := []EventType(nil)
	if acceptsError {
		loadingEvents = []EventType{EventErrorExecution}
	}

	m := &fakeMachine{
		id: "fetcher",
		init: &State{
			Value: "loading",
			Actions: []Action{
				{Tag: ActionStart, Activity: &ActivityRef{Type: InvokeActivity, ID: "child1", Src: "fetch"}},
			},
			NextEvents: loadingEvents,
		},
		options: MachineOptions{
			Strict: strict,
			Services: map[string]ServiceFactory{
				"fetch": factory,
			},
		},
	}
	m.transition = func(s *State, e Event) *State {
		switch e.Type {
		case DoneInvokeType("child1"):
			return &State{Value: "done", Context: e.Payload["data"]}
		case EventErrorExecution:
			return &State{Value: "failed", Context: e.Payload["error"]}
		}
		return s
	}
	return m
}

func TestSpawnPromise_Success(t *testing.T) {
	factory := func(ctx any, event Event) any {
		return Promise(func(ctx context.Context) (any, error) {
			return "hello", nil
		})
	}

	m := fetchMachine(factory, false, true)
	svc := New(m, Options{})

	result := make(chan any, 1)
	svc.OnTransition(func(s *State) {
		if s.Value == "done" {
			select {
			case result <- s.Context:
			default:
			}
		}
	})

	svc.Start(nil)

	select {
	case v := <-result:
		if v != "hello" {
			t.Fatalf("data = %v, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for promise completion")
	}
}

func TestSpawnPromise_FailureNonStrictTransitionsToFailed(t *testing.T) {
	wantErr := errors.New("boom")
	factory := func(ctx any, event Event) any {
		return Promise(func(ctx context.Context) (any, error) {
			return nil, wantErr
		})
	}

	m := fetchMachine(factory, false, true)
	svc := New(m, Options{})

	result := make(chan any, 1)
	svc.OnTransition(func(s *State) {
		if s.Value == "failed" {
			select {
			case result <- s.Context:
			default:
			}
		}
	})

	svc.Start(nil)

	select {
	case v := <-result:
		if !errors.Is(v.(error), wantErr) {
			t.Fatalf("error = %v, want %v", v, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure transition")
	}
}

func TestSpawnPromise_FailureStrictStopsService(t *testing.T) {
	wantErr := errors.New("boom")
	factory := func(ctx any, event Event) any {
		return Promise(func(ctx context.Context) (any, error) {
			return nil, wantErr
		})
	}

	// acceptsError = false: the loading state has no declared NextEvents,
	// so the synthesized error.execution re-raises inside
	// reportInvocationError's recover, and strict mode stops the service.
	m := fetchMachine(factory, true, false)
	svc := New(m, Options{})

	stopped := make(chan struct{})
	var stopCount int
	svc.OnStop(func() {
		stopCount++
		close(stopped)
	})

	svc.Start(nil)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for service to stop")
	}

	if stopCount != 1 {
		t.Fatalf("stopCount = %d, want 1", stopCount)
	}
}

func TestSpawnCallback_ReceiveDeliversEventsToParent(t *testing.T) {
	m := &fakeMachine{
		id: "listener",
		init: &State{
			Value: "idle",
			Actions: []Action{
				{Tag: ActionStart, Activity: &ActivityRef{Type: InvokeActivity, ID: "child1", Src: "ticker"}},
			},
		},
		options: MachineOptions{
			Services: map[string]ServiceFactory{
				"ticker": func(ctx any, event Event) any {
					return CallbackSource(func(receive ReceiveFunc, registerListener RegisterListenerFunc) func() {
						go receive(NewEvent("TICK", nil))
						return nil
					})
				},
			},
		},
	}
	m.transition = func(s *State, e Event) *State {
		if e.Type == "TICK" {
			return &State{Value: "ticked"}
		}
		return s
	}

	svc := New(m, Options{})
	result := make(chan string, 1)
	svc.OnTransition(func(s *State) {
		if v, ok := s.Value.(string); ok && v == "ticked" {
			select {
			case result <- v:
			default:
			}
		}
	})

	svc.Start(nil)

	select {
	case <-result:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback tick")
	}
}

func TestOff_RemovesListenerFromWhicheverSetItLivesIn(t *testing.T) {
	m := &fakeMachine{id: "noop", init: &State{Value: "idle"}}
	m.transition = func(s *State, e Event) *State { return s }

	svc := New(m, Options{})
	svc.Start(nil)

	var calls int
	token := svc.OnTransition(func(s *State) { calls++ })
	svc.Off(token)

	svc.Send(NewEvent("PING", nil), nil)

	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after Off", calls)
	}
}
