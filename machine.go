package hsm

// Machine is the pure, external state-machine definition the interpreter
// drives. The compiler that produces it (transition tables, guards,
// resolveState) is out of scope; the interpreter only ever calls through
// this contract.
type Machine interface {
	// ID is the machine's identifier, used as a service's default id.
	ID() string

	// InitialState returns the state a service starts in when no initial
	// state override is supplied.
	InitialState() *State

	// ResolveState completes a partial or externally-supplied state value
	// into a full State the interpreter can operate on.
	ResolveState(partial *State) *State

	// Transition computes the next state for (state, event). Must be pure:
	// calling it twice with equal inputs returns equal outputs and never
	// mutates state.
	Transition(state *State, event Event) *State

	// Options exposes the machine's lookup tables.
	Options() MachineOptions
}

// ServiceFactory produces an invocation source for an "invoke" activity,
// given the current context and the event that triggered the invocation.
// The returned value's dynamic type decides how it is supervised: a
// Promise, a CallbackSource, a Machine, or a string (reserved, ignored).
type ServiceFactory func(ctx any, event Event) any

// ActivityImpl starts a named, non-invoke activity and optionally returns a
// dispose function to run when the activity is stopped.
type ActivityImpl func(ctx any, activity ActivityRef) (dispose func())

// MachineOptions exposes a machine's delay, service and activity lookup
// tables plus its strictness flag.
type MachineOptions struct {
	Delays     map[string]DelayDef
	Services   map[string]ServiceFactory
	Activities map[string]ActivityImpl
	Strict     bool
}

// DelayDef is a delay value as stored in a machine's delays table: either a
// literal number of milliseconds or a function of context and event.
type DelayDef struct {
	Ms int64
	Fn func(ctx any, event Event) int64
}
