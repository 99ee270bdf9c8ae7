// Package toolerr provides structured error types for tool execution.
//
// This package defines standard error codes, a structured Error type carrying
// tool context and a cause chain, and the retryable classification consumed
// by the retry and circuit-breaker policies. It integrates with Go's standard
// errors package for wrapping and unwrapping.
package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes used across the execution pipeline.
const (
	// CodeValidation indicates the arguments failed schema validation.
	CodeValidation = "VALIDATION"

	// CodeUnauthorized indicates the caller is not allowed to run the tool.
	CodeUnauthorized = "UNAUTHORIZED"

	// CodeForbidden indicates the caller lacks a required permission or role.
	CodeForbidden = "FORBIDDEN"

	// CodeEgressDenied indicates the arguments target a disallowed destination.
	CodeEgressDenied = "EGRESS_DENIED"

	// CodeCircuitOpen indicates the tool's circuit breaker rejected the call.
	CodeCircuitOpen = "CIRCUIT_OPEN"

	// CodeTimeout indicates the operation exceeded its deadline.
	CodeTimeout = "TIMEOUT"

	// CodeUnavailable indicates a transient connectivity failure.
	CodeUnavailable = "UNAVAILABLE"

	// CodeRateLimited indicates the call was throttled.
	CodeRateLimited = "RATE_LIMITED"

	// CodeToolError is the generic code for operation failures.
	CodeToolError = "TOOL_ERROR"
)

// Error is a structured error for tool operations.
// It records which tool and pipeline stage failed, carries a standard error
// code, and wraps the underlying cause.
type Error struct {
	// Tool is the name of the tool whose execution produced the error.
	Tool string

	// Op is the pipeline stage that failed (e.g. "validate", "invoke").
	Op string

	// Code is one of the Code* constants.
	Code string

	// Message is a human-readable error message.
	Message string

	// Retryable marks the error as safe to retry. It is initialized from
	// the code's default classification and can be overridden per error.
	Retryable bool

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a new structured tool error.
//
// Example:
//
//	err := toolerr.New("charge_card", "invoke", toolerr.CodeUnavailable, "gateway unreachable")
func New(tool, op, code, message string) *Error {
	return &Error{
		Tool:      tool,
		Op:        op,
		Code:      code,
		Message:   message,
		Retryable: defaultRetryable(code),
	}
}

// WithCause attaches the underlying error and returns the same instance for
// chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithRetryable overrides the retryable flag derived from the code.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Error implements the error interface.
// Format: "tool [op/CODE]: message: cause"
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("%s [%s/%s]", e.Tool, e.Op, e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports code-level equality: two Errors match when Tool, Op, and Code
// are equal, with empty fields on the target acting as wildcards.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Tool != "" && t.Tool != e.Tool {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// As extracts the *Error from a wrapped chain.
func (e *Error) As(target any) bool {
	t, ok := target.(**Error)
	if !ok {
		return false
	}
	*t = e
	return true
}

// Sentinel errors for common pipeline outcomes.
var (
	// ErrCircuitOpen is returned when a circuit breaker rejects a call
	// without invoking the operation.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidArgs is returned when argument validation fails.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrAttemptsExhausted is returned by custom retry policies when the
	// absolute attempt cap is reached.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)
