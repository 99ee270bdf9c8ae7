package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

func testSpec(permissions ...string) *tool.Spec {
	return &tool.Spec{
		ID:          "scan",
		Name:        "scan",
		Kind:        tool.KindFunction,
		Permissions: permissions,
	}
}

func TestNoopAllowsEverything(t *testing.T) {
	ctx := context.Background()
	tc := tool.NewContext().SetUserID("anyone").Build()

	assert.NoError(t, Noop{}.Authorize(ctx, tc, testSpec("admin")))
	assert.NoError(t, Noop{}.CheckEgress(ctx, nil, testSpec()))
}

func TestBasicUserAllowlist(t *testing.T) {
	ctx := context.Background()
	s := Basic{AuthorizedUsers: []string{"alice", "bob"}}

	tc := tool.NewContext().SetUserID("alice").Build()
	assert.NoError(t, s.Authorize(ctx, tc, testSpec()))

	tc = tool.NewContext().SetUserID("mallory").Build()
	err := s.Authorize(ctx, tc, testSpec())
	require.Error(t, err)
	assert.Equal(t, toolerr.CodeUnauthorized, toolerr.Code(err))
	assert.False(t, toolerr.Retryable(err))
}

func TestBasicRequiredPermissions(t *testing.T) {
	ctx := context.Background()
	s := Basic{}

	tests := []struct {
		name     string
		held     any
		required []string
		wantCode string
	}{
		{"all held", []string{"read", "write"}, []string{"read", "write"}, ""},
		{"superset held", []string{"read", "write", "admin"}, []string{"read"}, ""},
		{"one missing", []string{"read"}, []string{"read", "write"}, toolerr.CodeForbidden},
		{"none held", nil, []string{"read"}, toolerr.CodeForbidden},
		{"claims as any slice", []any{"read", "write"}, []string{"write"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := tool.NewContext().SetUserID("alice")
			if tt.held != nil {
				builder.SetClaim(PermissionsClaim, tt.held)
			}
			err := s.Authorize(ctx, builder.Build(), testSpec(tt.required...))
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, toolerr.Code(err))
			}
		})
	}
}

func TestBasicRoleAllowlist(t *testing.T) {
	ctx := context.Background()
	s := Basic{AuthorizedRoles: []string{"admin", "operator"}}

	tc := tool.NewContext().SetUserID("alice").SetClaim(RoleClaim, "admin").Build()
	assert.NoError(t, s.Authorize(ctx, tc, testSpec()))

	tc = tool.NewContext().SetUserID("alice").SetClaim(RoleClaim, "viewer").Build()
	err := s.Authorize(ctx, tc, testSpec())
	require.Error(t, err)
	assert.Equal(t, toolerr.CodeForbidden, toolerr.Code(err))

	// Missing role claim fails the role check too.
	tc = tool.NewContext().SetUserID("alice").Build()
	assert.Error(t, s.Authorize(ctx, tc, testSpec()))
}

func TestCELRejectsInvalidPolicy(t *testing.T) {
	_, err := NewCEL(Basic{}, `args.url ==`)
	assert.Error(t, err)

	_, err = NewCEL(Basic{}, `args.url`) // dyn output, not bool
	assert.Error(t, err)
}

func TestCELEgressPolicy(t *testing.T) {
	ctx := context.Background()
	s, err := NewCEL(Basic{}, `!(has(args.url) && string(args.url).startsWith("http://169.254."))`)
	require.NoError(t, err)

	err = s.CheckEgress(ctx, map[string]any{"url": "https://example.com"}, testSpec())
	assert.NoError(t, err)

	err = s.CheckEgress(ctx, map[string]any{"url": "http://169.254.169.254/latest"}, testSpec())
	require.Error(t, err)
	assert.Equal(t, toolerr.CodeEgressDenied, toolerr.Code(err))
	assert.False(t, toolerr.Retryable(err))
}

func TestCELSeesToolAndKind(t *testing.T) {
	ctx := context.Background()
	s, err := NewCEL(nil, `kind != "http" || tool == "fetch"`)
	require.NoError(t, err)

	spec := testSpec()
	assert.NoError(t, s.CheckEgress(ctx, nil, spec))

	httpSpec := &tool.Spec{ID: "probe", Name: "probe", Kind: tool.KindHTTP}
	err = s.CheckEgress(ctx, nil, httpSpec)
	assert.Equal(t, toolerr.CodeEgressDenied, toolerr.Code(err))
}

func TestCELDelegatesAuthorize(t *testing.T) {
	ctx := context.Background()
	s, err := NewCEL(Basic{AuthorizedUsers: []string{"alice"}}, `true`)
	require.NoError(t, err)

	tc := tool.NewContext().SetUserID("mallory").Build()
	err = s.Authorize(ctx, tc, testSpec())
	assert.Equal(t, toolerr.CodeUnauthorized, toolerr.Code(err))
}
