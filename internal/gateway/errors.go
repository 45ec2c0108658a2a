package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// RateLimitedError is returned on a 429 or while a domain is still inside
// its computed backoff window. Retryable once RetryAfter has elapsed.
type RateLimitedError struct {
	Domain     string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate-limited, backing off %s", e.Domain, e.RetryAfter)
}

// BannedError is returned on a 418 hard-ban signal. Retryable after the
// fixed cooldown.
type BannedError struct {
	Domain   string
	Cooldown time.Duration
}

// Error implements the error interface
func (e *BannedError) Error() string {
	return fmt.Sprintf("%s returned IP ban, cooling down %s", e.Domain, e.Cooldown)
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Domain string
	Err    error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError represents a non-2xx response other than 429/418.
type StatusError struct {
	Domain     string
	StatusCode int
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.Domain, e.StatusCode, http.StatusText(e.StatusCode))
}

// ParseError marks a response body that did not decode; usually permanent
// until the upstream schema stabilizes.
type ParseError struct {
	Domain string
	Err    error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing response from %s: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying decode error
func (e *ParseError) Unwrap() error { return e.Err }
