// Package security provides the tool.Security implementations gating tool
// execution. Basic covers user, permission, and role checks against the
// call's auth claims; CEL adds an expression-based egress policy evaluated
// over the call arguments.
package security

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolweave-ai/sdk/tool"
	"github.com/toolweave-ai/sdk/toolerr"
)

// Noop authorizes every call and permits all egress.
type Noop struct{}

// Authorize implements tool.Security.
func (Noop) Authorize(ctx context.Context, tc *tool.Context, spec *tool.Spec) error {
	return nil
}

// CheckEgress implements tool.Security.
func (Noop) CheckEgress(ctx context.Context, args map[string]any, spec *tool.Spec) error {
	return nil
}

// Basic authorizes calls by user allowlist, required permissions, and role
// allowlist. Empty lists disable the corresponding check.
//
// Permissions come from the "permissions" auth claim and the role from the
// "role" claim. A tool listing permissions in its spec requires the caller
// to hold every one of them.
type Basic struct {
	// AuthorizedUsers restricts execution to the listed user IDs. Empty
	// means all users.
	AuthorizedUsers []string

	// AuthorizedRoles restricts execution to callers holding one of the
	// listed roles. Empty means all roles.
	AuthorizedRoles []string
}

// Auth claim names Basic reads.
const (
	PermissionsClaim = "permissions"
	RoleClaim        = "role"
)

// Authorize implements tool.Security.
func (s Basic) Authorize(ctx context.Context, tc *tool.Context, spec *tool.Spec) error {
	if len(s.AuthorizedUsers) > 0 && !contains(s.AuthorizedUsers, tc.UserID) {
		return toolerr.New(spec.Name, "authorize", toolerr.CodeUnauthorized,
			fmt.Sprintf("user %q is not authorized to execute %s", tc.UserID, spec.Name))
	}

	if len(spec.Permissions) > 0 {
		held := tc.StringClaims(PermissionsClaim)
		var missing []string
		for _, perm := range spec.Permissions {
			if !contains(held, perm) {
				missing = append(missing, perm)
			}
		}
		if len(missing) > 0 {
			return toolerr.New(spec.Name, "authorize", toolerr.CodeForbidden,
				fmt.Sprintf("user %q is missing permissions: %s",
					tc.UserID, strings.Join(missing, ", ")))
		}
	}

	if len(s.AuthorizedRoles) > 0 {
		role, _ := tc.Claim(RoleClaim)
		roleStr, _ := role.(string)
		if !contains(s.AuthorizedRoles, roleStr) {
			return toolerr.New(spec.Name, "authorize", toolerr.CodeForbidden,
				fmt.Sprintf("role %q is not authorized to execute %s", roleStr, spec.Name))
		}
	}
	return nil
}

// CheckEgress implements tool.Security. Basic has no egress policy.
func (s Basic) CheckEgress(ctx context.Context, args map[string]any, spec *tool.Spec) error {
	return nil
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
