package hsm

import "context"

// Promise is a promise-like invocation source: it runs once and either
// fulfills with a value or fails with an error. The executor runs it on its
// own goroutine and supervises the result as a promise child.
type Promise func(ctx context.Context) (any, error)

// ReceiveFunc lets a callback source send events into the parent service.
type ReceiveFunc func(Event)

// ListenerFunc is what a callback source registers to receive events sent
// to it from the parent (sendTo/forward).
type ListenerFunc func(Event)

// RegisterListenerFunc lets a callback source install its ListenerFunc.
type RegisterListenerFunc func(ListenerFunc)

// CallbackSource is a long-running invocation source driven by explicit
// send/receive rather than a single resolved value. Its return value, if
// non-nil, is used as the child's stop handle.
type CallbackSource func(receive ReceiveFunc, registerListener RegisterListenerFunc) func()
