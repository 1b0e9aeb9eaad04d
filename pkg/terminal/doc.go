// Package terminal exposes the high-level entry point of the SDK. A
// Terminal wires together the connection-token cache, the discovery engine,
// the connection manager, and the payment-intent machine, enforces the
// one-reader / one-operation invariants, and routes status notifications to
// the host's delegate.
//
// Construct exactly one Terminal per process and pass it around explicitly;
// behavior is undefined if multiple instances drive readers concurrently.
// Construction requires a configuration, a connection-token provider, a
// terminal delegate, and the external collaborators (scanner, session
// dialer, gateway); there is no zero-argument constructor.
//
// Every long-running operation returns immediately and reports its outcome
// through a single completion callback, invoked exactly once. All
// completions and delegate notifications are delivered in order on one
// dispatch goroutine owned by the Terminal.
package terminal
