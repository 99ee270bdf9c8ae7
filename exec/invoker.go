package exec

import (
	"context"
	"errors"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// HTTPDoer performs the HTTP request described by a spec's endpoint
// configuration. The concrete client and wire handling stay behind this
// interface.
type HTTPDoer interface {
	Do(ctx context.Context, endpoint *tool.HTTPSpec, args map[string]any) (any, error)
}

// HTTPInvoker adapts an HTTPDoer into the invoker for a KindHTTP spec.
// Transport failures are classified as retryable UNAVAILABLE errors unless
// the client already returned a structured error.
func HTTPInvoker(spec *tool.Spec, client HTTPDoer) (tool.Invoker, error) {
	if spec.Kind != tool.KindHTTP || spec.HTTP == nil {
		return nil, errors.New("exec: spec does not describe an HTTP tool")
	}
	if client == nil {
		return nil, errors.New("exec: HTTP client is required")
	}
	return tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		content, err := client.Do(ctx, spec.HTTP, args)
		if err != nil {
			return nil, classifyBackendErr(spec.Name, err, "HTTP request failed")
		}
		return content, nil
	}), nil
}

// DBRunner performs the database operation described by a spec's driver
// configuration.
type DBRunner interface {
	Run(ctx context.Context, db *tool.DBSpec, args map[string]any) (any, error)
}

// DBInvoker adapts a DBRunner into the invoker for a KindDB spec.
func DBInvoker(spec *tool.Spec, runner DBRunner) (tool.Invoker, error) {
	if spec.Kind != tool.KindDB || spec.DB == nil {
		return nil, errors.New("exec: spec does not describe a database tool")
	}
	if runner == nil {
		return nil, errors.New("exec: database runner is required")
	}
	return tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		content, err := runner.Run(ctx, spec.DB, args)
		if err != nil {
			return nil, classifyBackendErr(spec.Name, err, "database operation failed")
		}
		return content, nil
	}), nil
}

// classifyBackendErr wraps raw backend failures as retryable UNAVAILABLE
// errors, passing structured errors and context expiry through untouched.
func classifyBackendErr(toolName string, err error, message string) error {
	var te *toolerr.Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return toolerr.New(toolName, "invoke", toolerr.CodeUnavailable, message).WithCause(err)
}
