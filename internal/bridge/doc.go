// Package bridge runs blocking analysis work from request-handling
// goroutines without stalling them.
//
// A Bridge owns a fixed number of worker slots. CallSync acquires a slot,
// runs the optional before hook on the caller, runs the work on its own
// goroutine and always runs the after hook once the work stops. Callers wait
// on a channel and honour their context, so a cancelled request returns
// types.ErrCancelled immediately while the abandoned work drains in the
// background and still tears down its hook state.
//
// Work that needs to wait on asynchronous sub-work, including another
// CallSync, brackets the wait with SyncCallContext.Pause and Resume (or uses
// Await). The slot is released for the duration, so nesting cannot deadlock
// even with a single worker.
//
// The Bridge does not serialize callers. State configured by hooks is
// protected by passing a Guard with WithGuard. InFlight tags work per key so
// duplicate work for the same document can be rejected.
package bridge
