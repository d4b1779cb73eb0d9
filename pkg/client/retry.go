package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_retry_exhausted_total",
		Help: "Total number of requests that exhausted all retry attempts by error kind",
	}, []string{"kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Total attempts are 1 + MaxRetries.
	MaxRetries int

	// DelayBase scales the linear backoff: the delay before retry k is
	// k * DelayBase.
	DelayBase time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		DelayBase:  1 * time.Second,
	}
}

// withRetry executes fn, retrying transient failures with linear backoff.
//
// Only errors classified retryable (network, rate limited) trigger another
// attempt; everything else propagates immediately. After MaxRetries
// additional attempts the last error is wrapped with attempt-count context,
// preserving its Kind for errors.As.
func withRetry(ctx context.Context, logger zerolog.Logger, cfg RetryConfig, endpoint string, fn func() error) error {
	attempts := 1 + cfg.MaxRetries
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt >= attempts {
			break
		}

		kind := string(KindOf(err))
		retriesTotal.WithLabelValues(kind).Inc()

		delay := time.Duration(attempt) * cfg.DelayBase
		logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{
				Kind:     KindNetwork,
				Endpoint: endpoint,
				Message:  "cancelled during retry backoff",
				Err:      ctx.Err(),
			}
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(KindOf(lastErr))).Inc()
	logger.Warn().
		Err(lastErr).
		Str("endpoint", endpoint).
		Int("attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
