package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func searchSpec() *tool.Spec {
	return &tool.Spec{
		ID:   "search",
		Name: "search",
		Kind: tool.KindFunction,
		Parameters: []tool.Parameter{
			{Name: "query", Type: tool.TypeString, Required: true, MinLength: intPtr(1), MaxLength: intPtr(100)},
			{Name: "limit", Type: tool.TypeInteger, Min: floatPtr(1), Max: floatPtr(50)},
			{Name: "sort", Type: tool.TypeString, Enum: []string{"asc", "desc"}},
			{Name: "tags", Type: tool.TypeArray, MaxItems: intPtr(3)},
			{Name: "exact", Type: tool.TypeBoolean},
			{Name: "filter", Type: tool.TypeObject},
			{Name: "region", Type: tool.TypeString, Pattern: `^[a-z]{2}-[a-z]+-\d$`},
		},
	}
}

func TestNoopAcceptsAnything(t *testing.T) {
	err := Noop{}.Validate(context.Background(),
		map[string]any{"whatever": 42}, searchSpec())
	assert.NoError(t, err)
}

func TestBasicAcceptsValidArgs(t *testing.T) {
	v := NewBasic()
	err := v.Validate(context.Background(), map[string]any{
		"query":  "zero days",
		"limit":  10,
		"sort":   "desc",
		"tags":   []any{"cve", "rce"},
		"exact":  true,
		"filter": map[string]any{"year": 2026},
		"region": "us-east-1",
	}, searchSpec())
	assert.NoError(t, err)
}

func TestBasicViolations(t *testing.T) {
	v := NewBasic()
	spec := searchSpec()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"unknown argument", map[string]any{"query": "x", "bogus": 1}, `unknown argument "bogus"`},
		{"missing required", map[string]any{"limit": 5}, `missing required argument "query"`},
		{"null required", map[string]any{"query": nil}, `must not be null`},
		{"wrong type", map[string]any{"query": 42}, `must be a string`},
		{"too long", map[string]any{"query": string(make([]byte, 200))}, `longer than 100`},
		{"not an integer", map[string]any{"query": "x", "limit": 1.5}, `must be an integer`},
		{"below minimum", map[string]any{"query": "x", "limit": 0}, `below the minimum`},
		{"above maximum", map[string]any{"query": "x", "limit": 99}, `above the maximum`},
		{"enum violation", map[string]any{"query": "x", "sort": "random"}, `must be one of`},
		{"too many items", map[string]any{"query": "x", "tags": []any{1, 2, 3, 4}}, `more than 3 items`},
		{"not a boolean", map[string]any{"query": "x", "exact": "yes"}, `must be a boolean`},
		{"not an object", map[string]any{"query": "x", "filter": "a=b"}, `must be an object`},
		{"pattern mismatch", map[string]any{"query": "x", "region": "US-EAST-1"}, `does not match pattern`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.args, spec)
			require.Error(t, err)
			assert.Equal(t, toolerr.CodeValidation, toolerr.Code(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, toolerr.Retryable(err))
		})
	}
}

func TestBasicCollectsAllViolations(t *testing.T) {
	v := NewBasic()
	err := v.Validate(context.Background(), map[string]any{
		"limit": 99,
		"sort":  "random",
	}, searchSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "query"`)
	assert.Contains(t, err.Error(), "above the maximum")
	assert.Contains(t, err.Error(), "must be one of")
}

func TestBasicOptionalMayBeAbsent(t *testing.T) {
	v := NewBasic()
	err := v.Validate(context.Background(), map[string]any{"query": "x"}, searchSpec())
	assert.NoError(t, err)
}

func TestBasicAcceptsIntegerAsNumber(t *testing.T) {
	v := NewBasic()
	for _, value := range []any{5, int64(5), float64(5)} {
		err := v.Validate(context.Background(),
			map[string]any{"query": "x", "limit": value}, searchSpec())
		assert.NoError(t, err)
	}
}
