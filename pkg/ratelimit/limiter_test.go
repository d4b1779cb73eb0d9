package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPerSecond_Interval(t *testing.T) {
	tests := []struct {
		name string
		rps  int
		want time.Duration
	}{
		{"five per second", 5, 200 * time.Millisecond},
		{"one per second", 1, time.Second},
		{"ten per second", 10, 100 * time.Millisecond},
		{"zero disables gating", 0, 0},
		{"negative disables gating", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PerSecond(tt.rps).Interval(); got != tt.want {
				t.Errorf("PerSecond(%d).Interval() = %v, want %v", tt.rps, got, tt.want)
			}
		})
	}
}

func TestWait_SpacesStarts(t *testing.T) {
	// 10 tasks with a 20ms interval: the 10th start must not happen before
	// 9 intervals have elapsed, no matter how many goroutines fire at once.
	const tasks = 10
	interval := 20 * time.Millisecond
	l := New(interval)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error: %v", err)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	if min := time.Duration(tasks-1) * interval; elapsed < min {
		t.Errorf("10 tasks finished waiting in %v, want at least %v", elapsed, min)
	}
}

func TestWait_ZeroIntervalDoesNotBlock(t *testing.T) {
	l := New(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("ungated Wait took %v, expected near-instant", elapsed)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(time.Hour)

	// First call takes the immediate slot.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error: %v", err)
	}

	// Second call would wait an hour; cancel instead.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() returned nil, want context error")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWait_SharedAcrossCallers(t *testing.T) {
	// Two "call sites" sharing one limiter must not exceed the ceiling
	// collectively: 3+3 waits through a 15ms interval need >= 5 intervals.
	interval := 15 * time.Millisecond
	l := New(interval)

	start := time.Now()
	var wg sync.WaitGroup
	for site := 0; site < 2; site++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if err := l.Wait(context.Background()); err != nil {
					t.Errorf("Wait() error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if min := 5 * interval; time.Since(start) < min {
		t.Errorf("6 shared waits finished in %v, want at least %v", time.Since(start), min)
	}
}
