package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestRetry_DefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.MaxAttempts)
	}
	if cfg.BaseBackoff != 500*time.Millisecond {
		t.Errorf("expected BaseBackoff=500ms, got %v", cfg.BaseBackoff)
	}
	if cfg.MaxBackoff != 5*time.Second {
		t.Errorf("expected MaxBackoff=5s, got %v", cfg.MaxBackoff)
	}
}

func TestRetry_Do_SuccessOnFirstAttempt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := DefaultConfig()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_Do_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := Config{
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  100 * time.Millisecond,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_Do_ExhaustsAllAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := Config{
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  100 * time.Millisecond,
	}

	attempts := 0
	originalErr := errors.New("connection reset")
	err := Do(ctx, cfg, func() error {
		attempts++
		return originalErr
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
}

func TestRetry_Do_NonRetryableError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := Config{
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  100 * time.Millisecond,
	}

	attempts := 0
	originalErr := errors.New("invalid input")
	err := Do(ctx, cfg, func() error {
		attempts++
		return originalErr
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got %d", attempts)
	}
	if err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestRetry_Do_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts: 5,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  1 * time.Second,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("connection reset")
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestRetry_IsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout error", &net.OpError{Op: "read", Err: errors.New("i/o timeout")}, true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"too many requests", errors.New("too many requests"), true},
		{"service unavailable", errors.New("service unavailable"), true},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"plain failure", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_CalculateBackoff(t *testing.T) {
	t.Parallel()
	base := 500 * time.Millisecond
	max := 5 * time.Second

	// Run multiple times to verify jitter stays within base*2^n*(0.5..1.0).
	for i := 0; i < 10; i++ {
		got := calculateBackoff(base, max, 2)
		if got < time.Second || got > 2*time.Second {
			t.Errorf("calculateBackoff attempt 2 = %v, want between 1s and 2s", got)
		}
		got = calculateBackoff(base, max, 4)
		if got < 2500*time.Millisecond || got > max {
			t.Errorf("calculateBackoff attempt 4 = %v, want between 2.5s and 5s (capped)", got)
		}
	}
}

func TestRetry_CalculateBackoff_JitterVariance(t *testing.T) {
	t.Parallel()
	results := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		results[calculateBackoff(500*time.Millisecond, 5*time.Second, 2)] = true
	}
	if len(results) < 5 {
		t.Errorf("expected jitter to produce variance, but only got %d unique values", len(results))
	}
}
