// Package ratelimit implements the request gate for the StatHub API.
//
// StatHub enforces a hard requests-per-second ceiling per API consumer.
// The Limiter serializes request starts so that, across all goroutines that
// share one instance, no two requests begin less than the configured interval
// apart. A single Limiter is constructed at startup and injected into every
// client; per-call limiters would not compose under concurrent batch fetches.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limit gating.
var (
	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stathub_ratelimit_waits_total",
		Help: "Total number of requests that passed through the rate limiter",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stathub_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit slot",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	})
)

// Limiter spaces out request starts by a minimum interval.
//
// Slots are assigned in the order callers reach Wait. The interval is
// measured start-to-start: a request's own duration does not delay the next
// slot. Limiter is safe for concurrent use; the zero value is not usable,
// construct instances with New or PerSecond.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New creates a Limiter with the given minimum start-to-start interval.
// A non-positive interval disables gating, which is useful in tests.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// PerSecond creates a Limiter for a requests-per-second ceiling.
// PerSecond(5) spaces request starts at least 200ms apart.
func PerSecond(n int) *Limiter {
	if n <= 0 {
		return New(0)
	}
	return New(time.Second / time.Duration(n))
}

// Interval returns the configured start-to-start interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the caller's slot arrives or ctx is done.
//
// Each caller is assigned the earliest free slot at the moment it acquires
// the internal lock, so slots are handed out in lock-acquisition order and
// never overlap. If ctx expires before the slot arrives the slot is burned,
// not returned: a later caller must still honor the interval against it,
// since the upstream ceiling does not care why we skipped a send.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		waitsTotal.Inc()
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	delay := slot.Sub(now)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	waitsTotal.Inc()
	waitSeconds.Observe(delay.Seconds())
	return nil
}
