package client

import (
	"errors"
	"fmt"
)

// Kind classifies errors crossing the gateway's core boundary.
//
// Every error surfaced to the tool layer carries exactly one Kind, so the
// protocol adapter can emit a machine-readable error object instead of an
// undifferentiated failure.
type Kind string

const (
	// KindNotFound means the requested entity does not exist upstream.
	// Not a system failure; callers should suggest a corrective action.
	KindNotFound Kind = "not_found"

	// KindInvalidInput means a caller-supplied argument failed validation
	// before any network or cache interaction.
	KindInvalidInput Kind = "invalid_input"

	// KindRateLimited means upstream responded 429 after retries were
	// exhausted.
	KindRateLimited Kind = "rate_limited"

	// KindNetwork means a connection-level failure (refused, timed out)
	// persisted after retries were exhausted.
	KindNetwork Kind = "network"

	// KindUpstream covers any other non-2xx response or a malformed body.
	KindUpstream Kind = "upstream"
)

// Error is the typed error for all StatHub gateway failures.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Message    string
	Suggestion string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("stathub %s error", e.Kind)
	if e.Endpoint != "" {
		msg += fmt.Sprintf(" (%s)", e.Endpoint)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from an error chain.
// Errors that do not carry a Kind are reported as KindUpstream.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// IsNotFound reports whether err is a KindNotFound gateway error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// NotFound builds a KindNotFound error with a corrective suggestion.
func NotFound(endpoint, message, suggestion string) *Error {
	return &Error{Kind: KindNotFound, Endpoint: endpoint, Message: message, Suggestion: suggestion}
}

// InvalidInput builds a KindInvalidInput error. It is raised by validation
// before any network call is made.
func InvalidInput(message, suggestion string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Suggestion: suggestion}
}

// retryable reports whether an error may be retried: connection-level
// failures and upstream 429 only. Anything else, including malformed 200
// responses, propagates immediately.
func retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindNetwork || e.Kind == KindRateLimited
}
