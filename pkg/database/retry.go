package database

import (
	"context"
	"time"

	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

// RetryPolicy bounds how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// policy is exhausted. Exhaustion surfaces ConcurrentModification. Backoff
// grows linearly with the attempt number and honours ctx.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt >= policy.MaxRetries {
			return errors.ConcurrentModification(err)
		}
		if policy.Backoff > 0 {
			timer := time.NewTimer(policy.Backoff * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}
