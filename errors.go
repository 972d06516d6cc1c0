package hsm

import "errors"

// Usage errors: programmer mistakes surfaced synchronously at the call
// site, matching the error taxonomy's first category.
var (
	// ErrNotStarted is panicked by Send when deferEvents is false and the
	// service has not been started yet.
	ErrNotStarted = errors.New("hsm: send before start with deferEvents disabled")

	// ErrUnknownChild is panicked by sendTo when addressing a named child
	// that is not present in children.
	ErrUnknownChild = errors.New("hsm: sendTo addressed a child that does not exist")

	// ErrForwardMissingChild is panicked by forward when forwardTo names a
	// child no longer present in children (an invariant violation).
	ErrForwardMissingChild = errors.New("hsm: forwardTo references a child that no longer exists")
)
