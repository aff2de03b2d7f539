package httputil

import (
	"context"
	"errors"
	"time"
)

// Retry defaults used by the text-service client.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
	MaxDelay        = 30 * time.Second
)

// RetryableError marks a transient failure. After, when set, is the wait the
// server asked for (503 with Retry-After) and overrides the backoff step.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Policy controls [Retry].
type Policy struct {
	Attempts int
	Delay    time.Duration // first backoff step, doubled after each failure
	MaxDelay time.Duration

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy returns 3 attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay, MaxDelay: MaxDelay}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned, or ctx.Err() when the context
// ends during a wait.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = MaxDelay
	}
	delay := p.Delay

	var err error
	for i := 1; ; i++ {
		if err = fn(); err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) || i == attempts {
			return err
		}

		wait := min(delay, maxDelay)
		if re.After > 0 {
			wait = min(re.After, maxDelay)
		}
		if p.OnRetry != nil {
			p.OnRetry(i, wait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, maxDelay)
	}
}

// IsRetryable reports whether err is wrapped in [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
