// Package testutil provides shared helpers for the SDK's asynchronous
// tests.
package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond until it reports true or the deadline elapses, failing
// the test on timeout. Use it to assert on state reached by completion
// callbacks without sleeping fixed amounts.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
