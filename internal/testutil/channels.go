// Package testutil provides shared test helpers.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds operations that should finish promptly.
const DefaultTestTimeout = 5 * time.Second

// WaitForChannel waits for a signal on ch or fails after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// Within runs fn in a goroutine and fails the test if it has not returned
// after timeout. It returns fn's result.
func Within[T any](t *testing.T, timeout time.Duration, fn func() T) T {
	t.Helper()
	done := make(chan struct{})
	var result T
	go func() {
		defer close(done)
		result = fn()
	}()
	WaitForChannel(t, done, timeout, "operation did not finish in time")
	return result
}
