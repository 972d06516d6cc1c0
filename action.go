package hsm

// ActionTag identifies a built-in action shape. Custom actions carry their
// own Executor instead of relying on tag dispatch.
type ActionTag string

const (
	ActionInit   ActionTag = "init"
	ActionSend   ActionTag = "send"
	ActionCancel ActionTag = "cancel"
	ActionStart  ActionTag = "start"
	ActionStop   ActionTag = "stop"
	ActionLog    ActionTag = "log"
)

// ParentTarget is the send-target sentinel meaning "route to self.parent".
const ParentTarget = "#parent"

// InvokeActivity is the activity type reserved for service invocation, as
// opposed to a named activity implementation (e.g. "container").
const InvokeActivity = "invoke"

// Delay is the resolved or resolvable form of a send action's delay: either
// unset (fire immediately), a literal number of milliseconds, a named
// reference into the machine's delays table, or a function of the current
// context and event.
type Delay struct {
	Ms   int64
	Name string
	Fn   func(ctx any, event Event) int64
}

// ActivityRef names a started or stopped activity: either a service
// invocation (Type == InvokeActivity, with Src/Data/Forward set) or a
// named, machine-supplied activity implementation.
//
// Data and DataFn both rebind an invoked machine's initial context: Data is
// a literal map, DataFn maps the parent's current context and the
// triggering event into one, mirroring Delay's Ms/Fn split. DataFn, if set,
// wins.
type ActivityRef struct {
	Type    string
	ID      string
	Src     string
	Data    map[string]any
	DataFn  func(ctx any, event Event) map[string]any
	Forward bool
}

// ActionInfo is passed to a custom action's Executor alongside context and
// event, giving it a narrow view of the action and the state it belongs to.
type ActionInfo struct {
	Action Action
	State  *State
}

// Action is a tagged record describing one side effect to run on entry into
// a State. Built-in tags are dispatched by the Action Executor; an action
// carrying an Executor bypasses tag dispatch entirely.
type Action struct {
	Tag ActionTag

	// send
	Event  Event
	To     string
	Delay  *Delay
	SendID string

	// cancel
	CancelSendID string

	// start / stop
	Activity *ActivityRef

	// log
	Label string
	Expr  func(ctx any, event Event) any

	// custom escape hatch; when set, the executor calls this instead of
	// dispatching on Tag.
	Executor func(ctx any, event Event, info ActionInfo)
}
