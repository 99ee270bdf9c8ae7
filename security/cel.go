package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// CEL layers an expression-based egress policy over another Security
// implementation. The policy is a CEL expression evaluated per call with the
// variables:
//
//	args map(string, dyn)  the call arguments
//	tool string            the tool name
//	kind string            the tool kind ("function", "http", "db")
//
// It must evaluate to a bool; false denies egress. Authorization checks are
// delegated to the wrapped Security unchanged.
//
// Example:
//
//	policy, err := security.NewCEL(security.Basic{},
//	    `!args.url.startsWith("http://169.254.")`)
type CEL struct {
	inner   tool.Security
	program cel.Program
}

// NewCEL compiles the egress policy expression and wraps inner with it. A
// nil inner behaves like Noop for authorization.
func NewCEL(inner tool.Security, policy string) (*CEL, error) {
	if inner == nil {
		inner = Noop{}
	}

	env, err := cel.NewEnv(
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tool", cel.StringType),
		cel.Variable("kind", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("security: create CEL environment: %w", err)
	}

	ast, issues := env.Compile(policy)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("security: compile egress policy: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("security: egress policy must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("security: build egress program: %w", err)
	}
	return &CEL{inner: inner, program: program}, nil
}

// Authorize implements tool.Security by delegating to the wrapped policy.
func (s *CEL) Authorize(ctx context.Context, tc *tool.Context, spec *tool.Spec) error {
	return s.inner.Authorize(ctx, tc, spec)
}

// CheckEgress implements tool.Security. The call is denied when the policy
// evaluates to false or fails to evaluate.
func (s *CEL) CheckEgress(ctx context.Context, args map[string]any, spec *tool.Spec) error {
	if args == nil {
		args = map[string]any{}
	}
	out, _, err := s.program.ContextEval(ctx, map[string]any{
		"args": args,
		"tool": spec.Name,
		"kind": string(spec.Kind),
	})
	if err != nil {
		return toolerr.New(spec.Name, "egress", toolerr.CodeEgressDenied,
			"egress policy evaluation failed").WithCause(err)
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return toolerr.New(spec.Name, "egress", toolerr.CodeEgressDenied,
			"egress denied by policy")
	}
	if err := s.inner.CheckEgress(ctx, args, spec); err != nil {
		return err
	}
	return nil
}
