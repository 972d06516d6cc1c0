package hsm

// EventType names the kind of an Event. Application event types are
// arbitrary strings; the constants below are synthesized by the
// interpreter itself.
type EventType string

const (
	// EventInit is the event carried by the very first update a service
	// performs on start.
	EventInit EventType = "init"

	// EventErrorExecution is sent to a service when one of its invoked
	// children (promise or callback) fails.
	EventErrorExecution EventType = "error.execution"

	// EventXStateUpdate is sent to a parent service when a subscribed
	// child transitions, carrying the child's new state.
	EventXStateUpdate EventType = "xstate.update"
)

// DoneInvokeType builds the well-known completion event type for the child
// actor identified by id: "done.invoke.<id>".
func DoneInvokeType(id string) EventType {
	return EventType("done.invoke." + id)
}

// Event is a message delivered to a Service, either from the outside world
// or synthesized by the interpreter (init, done.invoke.<id>,
// error.execution, xstate.update).
type Event struct {
	Type    EventType
	Payload map[string]any
}

// NewEvent builds an Event of the given type with an optional payload. A
// nil payload is normalized to an empty map so action code can always index
// it without a nil check.
func NewEvent(eventType EventType, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Type: eventType, Payload: payload}
}

// errorExecutionEvent synthesizes the event sent to self when an invoked
// child fails, carrying the originating child id and the error.
func errorExecutionEvent(childID string, cause error) Event {
	return NewEvent(EventErrorExecution, map[string]any{
		"id":    childID,
		"error": cause,
	})
}

// doneInvokeEvent synthesizes the event sent to self when an invoked child
// completes successfully.
func doneInvokeEvent(childID string, data any) Event {
	return NewEvent(DoneInvokeType(childID), map[string]any{
		"id":   childID,
		"data": data,
	})
}
