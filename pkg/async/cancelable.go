// Package async provides the primitives the SDK uses to run long operations:
// Cancelable handles for cooperative cancellation and a serialized Queue
// that gives every completion callback and delegate notification a uniform
// execution context.
package async

import (
	"context"
	"sync"
)

// Cancelable is a handle to a single in-flight asynchronous operation.
// Cancel signals the operation to stop at its next safe checkpoint; it never
// blocks, never waits for the operation to finish, and does not guarantee a
// cancellation-kind completion if the operation had already passed the point
// of no return; in that race the authoritative result wins.
type Cancelable struct {
	mu       sync.Mutex
	canceled bool
	settled  bool
	stop     context.CancelFunc
}

// NewCancelable wraps the operation's cancel function. The owning operation
// must call Settle once its completion has fired.
func NewCancelable(stop context.CancelFunc) *Cancelable {
	return &Cancelable{stop: stop}
}

// Cancel requests early termination of the operation. It is idempotent and
// a no-op once the operation has settled.
func (c *Cancelable) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled || c.canceled {
		return
	}
	c.canceled = true
	if c.stop != nil {
		c.stop()
	}
}

// Canceled reports whether Cancel was called before the operation settled.
func (c *Cancelable) Canceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

// Settle marks the operation finished. Subsequent Cancel calls are no-ops.
// It is called by the operation that issued the handle, not by hosts.
func (c *Cancelable) Settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled = true
	c.stop = nil
}
