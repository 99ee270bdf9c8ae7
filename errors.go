package sdk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common SDK error conditions. These can be matched
// with errors.Is.
var (
	// ErrToolNotFound indicates the requested tool spec is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidConfig indicates the provided configuration is invalid or
	// incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrExecutionFailed indicates a tool execution failed. The underlying
	// error should be wrapped for additional context.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrStoreUnavailable indicates a backing store (memory, queue, or
	// registry) could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindExecution represents errors that occur during execution.
	KindExecution = "execution"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindNetwork represents errors related to network operations.
	KindNetwork = "network"

	// KindPermission represents errors related to permissions or authorization.
	KindPermission = "permission"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindInternal represents internal SDK errors.
	KindInternal = "internal"
)

// SDKError is a structured error type that wraps underlying errors with
// the operation that failed and the category of error.
//
// SDKError implements the error interface and supports unwrapping, making it
// compatible with errors.Is and errors.As.
//
// Example:
//
//	err := &SDKError{
//		Op:   "Registry.Get",
//		Kind: KindNotFound,
//		Err:  ErrToolNotFound,
//	}
type SDKError struct {
	// Op is the operation that failed (e.g. "Registry.Get", "Pool.Run").
	Op string

	// Kind categorizes the error (e.g. KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error.
	Err error

	// Context provides additional detail about the error (optional), such as
	// resource IDs or parameter values.
	Context map[string]any
}

// Error returns a formatted message including the operation, kind, and
// underlying error.
func (e *SDKError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sdk: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("sdk: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("sdk: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *SDKError) Unwrap() error {
	return e.Err
}

// Is matches either another SDKError by Kind (and Op when the target sets
// one) or the underlying error.
func (e *SDKError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*SDKError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context merged in.
//
// Example:
//
//	err = err.WithContext(map[string]any{
//		"tool_id": "charge-card-v1",
//	})
func (e *SDKError) WithContext(ctx map[string]any) *SDKError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewNotFoundError creates a new SDKError with KindNotFound.
func NewNotFoundError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new SDKError with KindValidation.
func NewValidationError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindValidation, Err: err}
}

// NewExecutionError creates a new SDKError with KindExecution.
func NewExecutionError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindExecution, Err: err}
}

// NewConfigurationError creates a new SDKError with KindConfiguration.
func NewConfigurationError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindConfiguration, Err: err}
}

// NewNetworkError creates a new SDKError with KindNetwork.
func NewNetworkError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindNetwork, Err: err}
}

// NewPermissionError creates a new SDKError with KindPermission.
func NewPermissionError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindPermission, Err: err}
}

// NewTimeoutError creates a new SDKError with KindTimeout.
func NewTimeoutError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindTimeout, Err: err}
}

// NewInternalError creates a new SDKError with KindInternal.
func NewInternalError(op string, err error) *SDKError {
	return &SDKError{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog closes the resource and logs any error at warning level,
// for use in defer statements so cleanup errors are not silently dropped.
//
// name describes the resource being closed (e.g. "redis connection"). If
// logger is nil, slog.Default() is used.
//
// Example:
//
//	defer sdk.CloseWithLog(store, logger, "redis connection")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
