package pacer

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCredentials signals the external service rejected the login.
// Terminal for the attempt; never retried.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthenticated signals a request was rejected with HTTP 401. The
// caller must re-authenticate; the client does not retry internally.
var ErrUnauthenticated = errors.New("session rejected, re-authentication required")

// MFARequiredError signals the account needs a one-time passcode. The caller
// must resubmit the attempt with an OTP.
type MFARequiredError struct {
	Message string
}

func (e *MFARequiredError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("multi-factor authentication required: %s", e.Message)
	}
	return "multi-factor authentication required"
}

// RateLimitedError carries the remaining lockout so callers can surface an
// actionable wait time.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// APIError is a non-retryable response from the external service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pacer api error (status %d): %s", e.StatusCode, e.Message)
}

// AuthError wraps transport-level authentication failures after retries are
// exhausted.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
