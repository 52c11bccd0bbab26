package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeSleepAdvancesTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if err := f.Sleep(context.Background(), 1500*time.Millisecond); err != nil {
		t.Fatalf("Sleep returned error: %v", err)
	}
	if err := f.Sleep(context.Background(), time.Second); err != nil {
		t.Fatalf("Sleep returned error: %v", err)
	}
	if got := f.Now().Sub(start); got != 2500*time.Millisecond {
		t.Fatalf("elapsed = %s, want 2.5s", got)
	}
	sleeps := f.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 1500*time.Millisecond || sleeps[1] != time.Second {
		t.Fatalf("Sleeps() = %v", sleeps)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFake(time.Time{}).Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fake.Sleep error = %v, want context.Canceled", err)
	}
	if err := (Real{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Real.Sleep error = %v, want context.Canceled", err)
	}
}
