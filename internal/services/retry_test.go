package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_DoublesAndCaps(t *testing.T) {
	base, max := time.Second, 5*time.Second
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := backoff(base, max, i); got != w {
			t.Fatalf("attempt %d: want %v, got %v", i, w, got)
		}
	}
	if got := backoff(time.Second, 0, 3); got != 8*time.Second {
		t.Fatalf("uncapped: want 8s, got %v", got)
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if err := sleepCtx(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("zero delay should still report cancellation, got %v", err)
	}
}
