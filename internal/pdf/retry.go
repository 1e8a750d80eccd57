package pdf

import (
	"context"
	"time"
)

// RetryPolicy bounds a retry loop: MaxAttempts total tries with exponential
// backoff starting at BaseDelay and growing by Multiplier per attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// maxBackoffDelay caps exponential growth
const maxBackoffDelay = 30 * time.Second

// DelayFor returns the backoff delay before retry number attempt (0-based:
// attempt 0 is the delay after the first failure).
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	if d > float64(maxBackoffDelay) {
		return maxBackoffDelay
	}
	return time.Duration(d)
}

// sleepContext waits for d or until ctx is done, whichever comes first.
// Backoff must never outlive a cancelled run.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
