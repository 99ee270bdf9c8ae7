// Package validate provides the tool.Validator implementations checking call
// arguments against a tool's parameter schema before invocation.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// Noop accepts every argument map.
type Noop struct{}

// Validate implements tool.Validator.
func (Noop) Validate(ctx context.Context, args map[string]any, spec *tool.Spec) error {
	return nil
}

// Basic checks arguments against the spec's parameter schema: unknown
// arguments are rejected, required arguments must be present, and each value
// must satisfy its parameter's type and constraints. All violations are
// collected into one VALIDATION error rather than stopping at the first.
type Basic struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewBasic returns a schema validator with an empty pattern cache.
func NewBasic() *Basic {
	return &Basic{patterns: make(map[string]*regexp.Regexp)}
}

// Validate implements tool.Validator.
func (v *Basic) Validate(ctx context.Context, args map[string]any, spec *tool.Spec) error {
	var violations []string

	declared := make(map[string]tool.Parameter, len(spec.Parameters))
	for _, p := range spec.Parameters {
		declared[p.Name] = p
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			violations = append(violations, fmt.Sprintf("unknown argument %q", name))
		}
	}

	for _, p := range spec.Parameters {
		value, present := args[p.Name]
		if !present {
			if p.Required {
				violations = append(violations, fmt.Sprintf("missing required argument %q", p.Name))
			}
			continue
		}
		if value == nil {
			if p.Required {
				violations = append(violations, fmt.Sprintf("argument %q must not be null", p.Name))
			}
			continue
		}
		violations = append(violations, v.checkValue(p, value)...)
	}

	if len(violations) > 0 {
		return toolerr.New(spec.Name, "validate", toolerr.CodeValidation,
			strings.Join(violations, "; "))
	}
	return nil
}

func (v *Basic) checkValue(p tool.Parameter, value any) []string {
	var violations []string
	fail := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	switch p.Type {
	case tool.TypeString:
		s, ok := value.(string)
		if !ok {
			fail("argument %q must be a string", p.Name)
			return violations
		}
		if p.MinLength != nil && len(s) < *p.MinLength {
			fail("argument %q is shorter than %d characters", p.Name, *p.MinLength)
		}
		if p.MaxLength != nil && len(s) > *p.MaxLength {
			fail("argument %q is longer than %d characters", p.Name, *p.MaxLength)
		}
		if len(p.Enum) > 0 && !containsString(p.Enum, s) {
			fail("argument %q must be one of: %s", p.Name, strings.Join(p.Enum, ", "))
		}
		if p.Pattern != "" {
			re, err := v.pattern(p.Pattern)
			if err != nil {
				fail("argument %q has an invalid pattern constraint", p.Name)
			} else if !re.MatchString(s) {
				fail("argument %q does not match pattern %s", p.Name, p.Pattern)
			}
		}

	case tool.TypeNumber, tool.TypeInteger:
		n, ok := asFloat(value)
		if !ok {
			fail("argument %q must be a number", p.Name)
			return violations
		}
		if p.Type == tool.TypeInteger && n != float64(int64(n)) {
			fail("argument %q must be an integer", p.Name)
		}
		if p.Min != nil && n < *p.Min {
			fail("argument %q is below the minimum %v", p.Name, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			fail("argument %q is above the maximum %v", p.Name, *p.Max)
		}

	case tool.TypeBoolean:
		if _, ok := value.(bool); !ok {
			fail("argument %q must be a boolean", p.Name)
		}

	case tool.TypeArray:
		items, ok := asSlice(value)
		if !ok {
			fail("argument %q must be an array", p.Name)
			return violations
		}
		if p.MinItems != nil && len(items) < *p.MinItems {
			fail("argument %q has fewer than %d items", p.Name, *p.MinItems)
		}
		if p.MaxItems != nil && len(items) > *p.MaxItems {
			fail("argument %q has more than %d items", p.Name, *p.MaxItems)
		}

	case tool.TypeObject:
		if _, ok := value.(map[string]any); !ok {
			fail("argument %q must be an object", p.Name)
		}
	}
	return violations
}

// pattern compiles and caches a regular expression constraint.
func (v *Basic) pattern(expr string) (*regexp.Regexp, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if re, ok := v.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.patterns[expr] = re
	return re, nil
}

// asFloat widens the numeric types JSON decoding and direct Go callers
// produce.
func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asSlice(value any) ([]any, bool) {
	switch items := value.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func containsString(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
