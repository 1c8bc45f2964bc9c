package shared

import (
	"context"
	"errors"
	"time"
)

// RetryAttempts bounds retries for transient store failures.
const RetryAttempts = 3

// Retry runs fn up to RetryAttempts times, backing off between attempts.
// Only ErrTransientStore failures are retried; everything else surfaces
// immediately.
func Retry(ctx context.Context, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, ErrTransientStore) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
