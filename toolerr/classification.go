package toolerr

import (
	"context"
	"errors"
	"net"
)

// defaultRetryable returns the default retry eligibility for an error code.
// Pre-execution failures (validation, authorization, egress) and circuit
// rejections are never retryable; timeouts and transient connectivity
// failures are.
func defaultRetryable(code string) bool {
	switch code {
	case CodeTimeout, CodeUnavailable, CodeRateLimited:
		return true
	default:
		return false
	}
}

// Retryable reports whether an error should be considered for another
// attempt. Structured Errors answer from their own flag. Context deadline
// expiry and net timeouts classify as retryable so that a per-attempt
// timeout can be retried under a fresh deadline. Everything else, including
// context cancellation, is terminal.
//
// Example:
//
//	if toolerr.Retryable(err) {
//	    // schedule another attempt
//	}
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// Code extracts the error code from a wrapped chain, or CodeToolError when
// the chain carries no structured Error.
func Code(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return CodeTimeout
	}
	if errors.Is(err, ErrCircuitOpen) {
		return CodeCircuitOpen
	}
	return CodeToolError
}

// IsCircuitOpen reports whether the error chain represents a circuit-breaker
// rejection.
func IsCircuitOpen(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var te *Error
	return errors.As(err, &te) && te.Code == CodeCircuitOpen
}
