package model

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ProviderUnavailableError indicates a transient provider fault (5xx, network
// failure, timeout). Retryable with backoff.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider rejected the call due to rate
// limiting (HTTP 429). Retryable; RetryAfter is honored when the provider
// supplied one.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %s rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ProviderProtocolError indicates the request violates a provider protocol
// rule, such as the tool call / tool result pairing requirement. This is a
// programming error: never retried, propagated immediately.
type ProviderProtocolError struct {
	Provider string
	Err      error
}

func (e *ProviderProtocolError) Error() string {
	return fmt.Sprintf("provider %s protocol violation: %v", e.Provider, e.Err)
}

func (e *ProviderProtocolError) Unwrap() error { return e.Err }

// SchemaIncompatibleError indicates a tool spec the active provider cannot
// accept. Names the offending tool and field. Never retried.
type SchemaIncompatibleError struct {
	Provider string
	Tool     string
	Field    string
	Reason   string
}

func (e *SchemaIncompatibleError) Error() string {
	return fmt.Sprintf("provider %s cannot accept tool %q field %q: %s", e.Provider, e.Tool, e.Field, e.Reason)
}

// IsRetryable reports whether the error is a transient provider fault that
// may succeed on retry. Protocol and schema errors are never retryable.
func IsRetryable(err error) bool {
	var unavailable *ProviderUnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	var rateLimited *RateLimitError
	return errors.As(err, &rateLimited)
}

// RetryAfter extracts the provider-requested backoff, if any.
func RetryAfter(err error) time.Duration {
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return rateLimited.RetryAfter
	}
	return 0
}

// statusCoder is implemented by the Anthropic and OpenAI SDK error types.
type statusCoder interface {
	StatusCode() int
}

// WrapProviderError maps an SDK or transport error onto the typed taxonomy:
// 429 becomes RateLimitError, 5xx and network-level faults become
// ProviderUnavailableError, anything else passes through unchanged.
func WrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 429:
			return &RateLimitError{Provider: provider, Err: err}
		case code >= 500 && code < 600:
			return &ProviderUnavailableError{Provider: provider, Err: err}
		}
	}

	if isNetworkError(err) {
		return &ProviderUnavailableError{Provider: provider, Err: err}
	}

	return err
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
