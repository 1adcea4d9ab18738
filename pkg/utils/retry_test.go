package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithResultEventualSuccess(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(),
		FixedRetryConfig(3, time.Millisecond),
		func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("RetryWithResult: %v", err)
	}
	if got != 42 || attempts != 3 {
		t.Errorf("got %d after %d attempts", got, attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still down")
	err := Retry(context.Background(), FixedRetryConfig(3, time.Millisecond), func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want last attempt's error", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, FixedRetryConfig(5, time.Minute), func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 before cancellation", attempts)
	}
}
