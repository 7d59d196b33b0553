package authz

import (
	oidckit "github.com/open-rails/workplan/oidc"
)

// ScopedManagerRole is the membership role that grants management rights
// within one project. It lives in project_members rows, not in the token.
const ScopedManagerRole = "MANAGER"

// Decision is the outcome of a fine-grained policy evaluation. On denial,
// Required names the conditions that were checked.
type Decision struct {
	Granted  bool
	Reason   string
	Required []string
}

const reasonInsufficientPrivilege = "insufficient-privilege"

// ProjectFacts are the independently computed inputs to the project policy.
// Ownership and membership come from the persistence layer; the global flag
// comes from the token's roles.
type ProjectFacts struct {
	// GlobalAdminOrManager is true when the identity holds admin or
	// project_manager globally. Always sufficient on its own.
	GlobalAdminOrManager bool
	// Owner is true when the project's owner row matches the caller.
	Owner bool
	// ScopedManager is true when a membership row with the MANAGER role
	// exists for (project, caller).
	ScopedManager bool
}

// TaskFacts extend the project facts with the assignee check used for task
// mutation.
type TaskFacts struct {
	ProjectFacts
	// Assignee is true when the task's assigned_to matches the caller.
	Assignee bool
}

// GlobalAdminOrManager computes the policy's global fact from an identity.
func GlobalAdminOrManager(id *oidckit.Identity) bool {
	return HasRole(id, RoleAdmin) || HasRole(id, RoleProjectManager)
}

// EvaluateProjectAccess decides whether a project mutation is allowed:
// global admin/manager OR owner OR scoped MANAGER member.
func EvaluateProjectAccess(f ProjectFacts) Decision {
	if f.GlobalAdminOrManager || f.Owner || f.ScopedManager {
		return Decision{Granted: true}
	}
	return Decision{
		Reason:   reasonInsufficientPrivilege,
		Required: []string{RoleAdmin, RoleProjectManager, "project owner", "project MANAGER member"},
	}
}

// EvaluateTaskAccess decides whether a task mutation is allowed. Same rule
// as projects, plus the task assignee qualifies.
func EvaluateTaskAccess(f TaskFacts) Decision {
	if f.GlobalAdminOrManager || f.Owner || f.ScopedManager || f.Assignee {
		return Decision{Granted: true}
	}
	return Decision{
		Reason:   reasonInsufficientPrivilege,
		Required: []string{RoleAdmin, RoleProjectManager, "project owner", "project MANAGER member", "task assignee"},
	}
}
