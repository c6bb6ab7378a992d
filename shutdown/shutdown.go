// Package shutdown turns termination signals into context cancellation.
package shutdown

import (
	"context"
	"os"
)

// Context is canceled on the first interrupt or terminate signal. Call stop
// to release the signal handler.
func Context(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	Notify(ch)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			cancel()
		case <-done:
		}
	}()
	return ctx, func() {
		Reset(ch)
		close(done)
		cancel()
	}
}
