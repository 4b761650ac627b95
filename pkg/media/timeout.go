package media

import (
	"context"
	"time"
)

// defaultOperationTimeout bounds probe/cut/normalize wall-clock time; a
// shorter deadline already on the caller's context still applies.
const defaultOperationTimeout = 120 * time.Second

// runWithTimeout runs fn on its own goroutine and returns its error, or
// ctx's error if timeout elapses first. ffmpeg-go's Stream.Run blocks with
// no cancellation hook, so a timed-out fn keeps running in the background
// until the underlying process exits on its own.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
