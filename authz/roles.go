// Package authz answers authorization questions over a verified identity.
// It is pure logic: no I/O, no retries, and the only failure mode is a
// ForbiddenError.
package authz

import (
	"fmt"
	"sort"

	oidckit "github.com/open-rails/workplan/oidc"
)

// Global roles with special meaning to the fine-grained policy.
const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleDeveloper      = "developer"
)

// ForbiddenError reports a failed role gate: which roles would have been
// accepted and which roles the identity actually held.
type ForbiddenError struct {
	Required []string
	Held     []string
}

func (e *ForbiddenError) Error() string {
	if len(e.Required) == 1 {
		return fmt.Sprintf("access denied, required role: %s", e.Required[0])
	}
	return fmt.Sprintf("access denied, required any of roles: %v", e.Required)
}

// HasRole reports whether role appears in the realm role list or in any
// per-client role list.
func HasRole(id *oidckit.Identity, role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.RealmRoles {
		if r == role {
			return true
		}
	}
	for _, roles := range id.ClientRoles {
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds at least one of roles.
func HasAnyRole(id *oidckit.Identity, roles ...string) bool {
	for _, r := range roles {
		if HasRole(id, r) {
			return true
		}
	}
	return false
}

// AllRoles returns the deduplicated union of realm and client roles,
// sorted for stable output.
func AllRoles(id *oidckit.Identity) []string {
	if id == nil {
		return []string{}
	}
	set := make(map[string]struct{})
	for _, r := range id.RealmRoles {
		set[r] = struct{}{}
	}
	for _, roles := range id.ClientRoles {
		for _, r := range roles {
			set[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// IsRegularUser reports whether the identity holds neither of the global
// management roles. Listing endpoints use this to narrow visibility.
func IsRegularUser(id *oidckit.Identity) bool {
	return !HasRole(id, RoleAdmin) && !HasRole(id, RoleProjectManager)
}

// Guard is a reusable precondition over an identity. A nil return means
// the gate passed; otherwise the error is a *ForbiddenError.
type Guard func(id *oidckit.Identity) error

// RequireRole builds a guard that passes only identities holding role.
func RequireRole(role string) Guard {
	return func(id *oidckit.Identity) error {
		if HasRole(id, role) {
			return nil
		}
		return &ForbiddenError{Required: []string{role}, Held: AllRoles(id)}
	}
}

// RequireAnyRole builds a guard that passes identities holding at least one
// of roles. The failure lists every role that would have been accepted.
func RequireAnyRole(roles ...string) Guard {
	return func(id *oidckit.Identity) error {
		for _, r := range roles {
			if HasRole(id, r) {
				return nil
			}
		}
		return &ForbiddenError{Required: append([]string(nil), roles...), Held: AllRoles(id)}
	}
}
