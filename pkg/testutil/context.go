package testutil

import (
	"context"
	"testing"
	"time"
)

// GetTestContext returns a context bounded by the shorter of the test
// binary's deadline (go test -timeout) and testTimeout. A zero testTimeout
// imposes no bound beyond the binary deadline; with neither bound the
// context is cancel-only.
func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, haveDeadline := t.Deadline()

	if testTimeout != 0 {
		testDeadline := time.Now().Add(testTimeout)
		if !haveDeadline || testDeadline.Before(deadline) {
			deadline = testDeadline
			haveDeadline = true
		}
	}

	if !haveDeadline {
		return context.WithCancel(context.Background())
	}

	return context.WithDeadline(context.Background(), deadline)
}
