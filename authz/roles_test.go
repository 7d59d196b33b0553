package authz

import (
	"errors"
	"reflect"
	"testing"

	oidckit "github.com/open-rails/workplan/oidc"
)

func identity(realm []string, client map[string][]string) *oidckit.Identity {
	return &oidckit.Identity{Subject: "u-1", RealmRoles: realm, ClientRoles: client}
}

func TestHasRole(t *testing.T) {
	cases := []struct {
		name string
		id   *oidckit.Identity
		role string
		want bool
	}{
		{"nil identity", nil, RoleAdmin, false},
		{"no roles at all", identity(nil, nil), RoleAdmin, false},
		{"realm role match", identity([]string{"admin"}, nil), RoleAdmin, true},
		{"realm role miss", identity([]string{"developer"}, nil), RoleAdmin, false},
		{
			"client role match",
			identity(nil, map[string][]string{"pm-backend": {"project_manager"}}),
			RoleProjectManager,
			true,
		},
		{
			"role in any client counts",
			identity(nil, map[string][]string{"other-app": {"admin"}}),
			RoleAdmin,
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasRole(tc.id, tc.role); got != tc.want {
				t.Errorf("HasRole = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	id := identity([]string{"developer"}, nil)
	if !HasAnyRole(id, RoleAdmin, RoleDeveloper) {
		t.Error("expected developer to satisfy any-of gate")
	}
	if HasAnyRole(id, RoleAdmin, RoleProjectManager) {
		t.Error("developer must not satisfy admin/manager gate")
	}
	if HasAnyRole(id) {
		t.Error("empty role list must never pass")
	}
}

func TestAllRolesDeduplicatesAndSorts(t *testing.T) {
	id := identity(
		[]string{"developer", "admin"},
		map[string][]string{
			"pm-backend": {"developer", "reporter"},
			"account":    {"view-profile"},
		},
	)
	got := AllRoles(id)
	want := []string{"admin", "developer", "reporter", "view-profile"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllRoles = %v, want %v", got, want)
	}

	if got := AllRoles(nil); len(got) != 0 {
		t.Errorf("AllRoles(nil) = %v, want empty", got)
	}
}

func TestIsRegularUser(t *testing.T) {
	if !IsRegularUser(identity([]string{"developer"}, nil)) {
		t.Error("developer is a regular user")
	}
	if IsRegularUser(identity([]string{"project_manager"}, nil)) {
		t.Error("project_manager is not a regular user")
	}
	if IsRegularUser(identity(nil, map[string][]string{"x": {"admin"}})) {
		t.Error("client-scoped admin is not a regular user")
	}
}

func TestGuards(t *testing.T) {
	admin := identity([]string{"admin"}, nil)
	dev := identity([]string{"developer"}, nil)

	if err := RequireRole(RoleAdmin)(admin); err != nil {
		t.Errorf("admin gate rejected admin: %v", err)
	}

	err := RequireRole(RoleAdmin)(dev)
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %T, want *ForbiddenError", err)
	}
	if !reflect.DeepEqual(fe.Required, []string{RoleAdmin}) {
		t.Errorf("Required = %v", fe.Required)
	}
	if !reflect.DeepEqual(fe.Held, []string{"developer"}) {
		t.Errorf("Held = %v", fe.Held)
	}

	if err := RequireAnyRole(RoleAdmin, RoleProjectManager)(dev); err == nil {
		t.Error("developer passed the admin/manager gate")
	}
	if err := RequireAnyRole(RoleAdmin, RoleDeveloper)(dev); err != nil {
		t.Errorf("developer rejected by any-of gate: %v", err)
	}
}
