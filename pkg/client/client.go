// Package client provides the core StatHub HTTP client with rate limiting,
// retries, and error classification.
//
// The client issues single logical GET requests against the StatHub v3 API
// and decodes the standard response envelope. Every request passes through
// the shared rate limiter before it is sent and through the retry policy if
// it fails transiently. A 404 is not an error here: absence of a resource is
// a valid outcome for by-id lookups and is normalized to an empty envelope.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/nwardt/stathub-mcp/pkg/logging"
	"github.com/nwardt/stathub-mcp/pkg/ratelimit"
)

// Prometheus metrics for StatHub request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_requests_total",
		Help: "Total StatHub requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stathub_request_duration_seconds",
		Help:    "StatHub request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_errors_total",
		Help: "Total StatHub errors by kind",
	}, []string{"kind"})
)

// Envelope is the StatHub wire-level response wrapper: one page of records
// plus pagination links. NextPage, when present, is an absolute URL that
// already encodes its own query parameters.
type Envelope[T any] struct {
	Values       []T    `json:"values"`
	Count        int    `json:"count"`
	NextPage     string `json:"next_page,omitempty"`
	PreviousPage string `json:"previous_page,omitempty"`
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the StatHub API root (e.g. "https://api.stathub.io/v3").
	BaseURL string

	// UserAgent identifies this consumer to StatHub.
	UserAgent string

	// Timeout bounds each HTTP attempt and aborts the underlying
	// connection when exceeded. Default 30s.
	Timeout time.Duration

	// Retry configures the transient-failure retry policy.
	Retry RetryConfig

	// Limiter is the shared request gate. Required: all clients in a
	// process must share one instance or fan-out will exceed the ceiling.
	Limiter *ratelimit.Limiter
}

// DefaultConfig returns a safe default configuration around the given
// shared limiter.
func DefaultConfig(baseURL string, limiter *ratelimit.Limiter) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "stathub-mcp/0.1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
		Limiter:   limiter,
	}
}

// Client is the StatHub HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *ratelimit.Limiter
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new StatHub client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("shared rate limiter is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.DelayBase <= 0 {
		cfg.Retry.DelayBase = DefaultRetryConfig().DelayBase
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		limiter:    cfg.Limiter,
		retry:      cfg.Retry,
		logger:     logging.NewLogger("stathub-client"),
	}, nil
}

// BaseURL returns the configured API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues one logical GET against an endpoint path with query parameters
// and decodes the envelope. A 404 yields an empty envelope, never an error.
func Get[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (*Envelope[T], error) {
	rawURL := c.baseURL + endpoint
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	return fetch[T](ctx, c, rawURL, endpoint)
}

// GetPage issues a GET against a server-supplied page URL (a next_page or
// previous_page link). The URL already encodes its own parameters; nothing
// is re-applied.
func GetPage[T any](ctx context.Context, c *Client, pageURL string) (*Envelope[T], error) {
	endpoint := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		endpoint = u.Path
	}
	return fetch[T](ctx, c, pageURL, endpoint)
}

func fetch[T any](ctx context.Context, c *Client, rawURL, endpoint string) (*Envelope[T], error) {
	body, notFound, err := c.get(ctx, rawURL, endpoint)
	if err != nil {
		return nil, err
	}
	if notFound {
		return &Envelope[T]{Values: []T{}, Count: 0}, nil
	}

	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		errorsTotal.WithLabelValues(string(KindUpstream)).Inc()
		return nil, &Error{
			Kind:     KindUpstream,
			Endpoint: endpoint,
			Message:  "malformed response body",
			Err:      err,
		}
	}
	return &env, nil
}

// get performs the rate-limited, retried HTTP GET and returns the raw body.
// The second return value is true when upstream answered 404.
func (c *Client) get(ctx context.Context, rawURL, endpoint string) (body []byte, notFound bool, err error) {
	requestID := uuid.NewString()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Msg("Executing StatHub request")

	retryErr := withRetry(ctx, c.logger, c.retry, endpoint, func() error {
		body, notFound, err = c.attempt(ctx, rawURL, endpoint, requestID)
		return err
	})
	if retryErr != nil {
		return nil, false, retryErr
	}
	return body, notFound, nil
}

// attempt performs a single HTTP GET attempt.
func (c *Client) attempt(ctx context.Context, rawURL, endpoint, requestID string) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, &Error{
			Kind:     KindNetwork,
			Endpoint: endpoint,
			Message:  "cancelled while waiting for rate limit slot",
			Err:      err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, &Error{Kind: KindUpstream, Endpoint: endpoint, Message: "build request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, false, &Error{Kind: KindNetwork, Endpoint: endpoint, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Absence is a valid outcome for by-id lookups, not an error.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		errorsTotal.WithLabelValues(string(KindRateLimited)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("request_id", requestID).
			Msg("StatHub rate limit hit")
		return nil, false, &Error{
			Kind:       KindRateLimited,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "upstream rate limit exceeded",
		}

	case resp.StatusCode >= 400:
		errorsTotal.WithLabelValues(string(KindUpstream)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Msg("StatHub request error")
		return nil, false, &Error{
			Kind:       KindUpstream,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		return nil, false, &Error{Kind: KindNetwork, Endpoint: endpoint, Message: "read response body", Err: err}
	}
	return data, false, nil
}
