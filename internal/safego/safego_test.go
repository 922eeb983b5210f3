package safego

import (
	"testing"
	"time"
)

// waitDone fails the test unless ch closes within two seconds.
func waitDone(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Error(msg)
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })
	waitDone(t, done, "goroutine did not run")
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go(func() {
		defer close(done)
		panic("deliberate panic")
	})
	// The process must survive and the deferred close must still run.
	waitDone(t, done, "goroutine did not complete after panic")
}
