package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff for retryable failures.
type RetryPolicy struct {
	MaxRetries int // attempts after the first call
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter  bool
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Delay returns the wait before retry n (0-indexed).
func (p RetryPolicy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n))
	if p.MaxDelay > 0 {
		d = math.Min(d, float64(p.MaxDelay))
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// the policy's retries are spent. A server-requested wait longer than
// MaxDelay ends the retries early.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		var e *Error
		if errors.As(err, &e) && e.RetryAfter > 0 {
			if policy.MaxDelay > 0 && e.RetryAfter > policy.MaxDelay {
				return zero, err
			}
			delay = e.RetryAfter
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &Error{Kind: KindCanceled, Message: "canceled while waiting to retry", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}
