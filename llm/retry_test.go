package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute}

	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := policy.Delay(i); got != want {
			t.Errorf("retry %d: expected %v, got %v", i, want, got)
		}
	}
	if got := policy.Delay(20); got != time.Minute {
		t.Errorf("expected delay capped at 1m, got %v", got)
	}

	flat := RetryPolicy{BaseDelay: time.Second}
	if got := flat.Delay(3); got != time.Second {
		t.Errorf("expected unset multiplier to keep the base delay, got %v", got)
	}
}

func TestRetryPolicyDelayWithJitter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, Jitter: true}
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("delay %v outside jitter range", got)
		}
	}
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}
}

func serverError() error {
	return &Error{Kind: KindServer, StatusCode: 500, Message: "fail"}
}

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	var retried []int
	policy := fastPolicy(3)
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		retried = append(retried, attempt)
	}

	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", serverError()
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || attempts != 3 {
		t.Errorf("expected ok after 3 attempts, got %q after %d", result, attempts)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", retried)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		attempts++
		return "", &Error{Kind: KindAuthentication, Message: "bad key"}
	})
	if KindOf(err) != KindAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (int, error) {
		attempts++
		return 0, &Error{Kind: KindRateLimit, Message: "slow down"}
	})
	if KindOf(err) != KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryAfterBeyondMaxDelayStops(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		attempts++
		return 0, &Error{Kind: KindRateLimit, RetryAfter: time.Hour}
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected a single attempt, got %d (err=%v)", attempts, err)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Second, MaxDelay: 10 * time.Second}

	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		cancel()
		return "", serverError()
	})
	if KindOf(err) != KindCanceled {
		t.Fatalf("expected canceled error, got %T: %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the context error to be wrapped")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&Error{Kind: KindAuthentication}, false},
		{&Error{Kind: KindContextLength}, false},
		{&Error{Kind: KindConfiguration}, false},
		{&Error{Kind: KindRateLimit}, true},
		{&Error{Kind: KindServer}, true},
		{&Error{Kind: KindTimeout}, true},
		{&Error{Kind: KindUnknown}, true},
		{errors.New("mystery"), true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindServer, Provider: "openai", StatusCode: 503, Err: errors.New("overloaded")}
	if got := err.Error(); got != "openai: server (503): overloaded" {
		t.Errorf("unexpected message %q", got)
	}
}
