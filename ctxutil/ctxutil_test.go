// Copyright (c) 2025 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(os.ErrClosed)

	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("want os.ErrClosed, got %v", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("sleep did not return early: took %s", d)
	}
}

func TestRetryTimeout(t *testing.T) {
	ctx := context.Background()

	n := 0
	err := RetryTimeout(ctx, time.Millisecond, time.Second, func() error {
		if n++; n < 3 {
			return os.ErrNotExist
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("want 3 attempts, got %d", n)
	}
}
