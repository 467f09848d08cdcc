package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond every few milliseconds until it returns true or the
// timeout expires. Fails the test on timeout.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, msg)
}
