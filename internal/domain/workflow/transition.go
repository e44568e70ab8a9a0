package workflow

import "fmt"

// RoleGuard is an identity check layered on top of an edge's required permission
type RoleGuard string

const (
	GuardNone              RoleGuard = ""
	GuardAssigneeOrViewAll RoleGuard = "assignee_or_view_all"
	GuardOwnerOrEditAll    RoleGuard = "owner_or_edit_all"
)

// Actor carries what the table needs to know about the acting user
type Actor struct {
	Permissions PermissionSet
	IsAssignee  bool
	IsOwner     bool
}

// Satisfied reports whether the actor passes the guard
func (g RoleGuard) Satisfied(actor Actor) bool {
	switch g {
	case GuardAssigneeOrViewAll:
		return actor.IsAssignee || actor.Permissions.Has(PermissionViewAll)
	case GuardOwnerOrEditAll:
		return actor.IsOwner || actor.Permissions.Has(PermissionEditAll)
	default:
		return true
	}
}

// Transition is a directed edge of the fixed case workflow
type Transition struct {
	From               Status    `json:"from"`
	To                 Status    `json:"to"`
	RequiredPermission string    `json:"required_permission"`
	RequiresComment    bool      `json:"requires_comment,omitempty"`
	RequiresAssignment bool      `json:"requires_assignment,omitempty"`
	RequiresSignature  bool      `json:"requires_signature,omitempty"`
	Label              string    `json:"label"`
	Guard              RoleGuard `json:"role_guard,omitempty"`
}

// Allows reports whether the actor holds the edge's permission and passes its role guard
func (t Transition) Allows(actor Actor) bool {
	return actor.Permissions.Has(t.RequiredPermission) && t.Guard.Satisfied(actor)
}

// Authorize checks the actor against an edge, returning ErrPermissionDenied on failure
func (t Transition) Authorize(actor Actor) error {
	if !actor.Permissions.Has(t.RequiredPermission) {
		return fmt.Errorf("%w: missing %s", ErrPermissionDenied, t.RequiredPermission)
	}
	if !t.Guard.Satisfied(actor) {
		return fmt.Errorf("%w: role guard %s", ErrPermissionDenied, t.Guard)
	}
	return nil
}

// EdgeOption adjusts an edge while the table is being built
type EdgeOption func(*Transition)

// RequireComment marks the edge as needing a comment
func RequireComment() EdgeOption {
	return func(t *Transition) { t.RequiresComment = true }
}

// RequireAssignment marks the edge as needing an assignee
func RequireAssignment() EdgeOption {
	return func(t *Transition) { t.RequiresAssignment = true }
}

// RequireSignature marks the edge as needing an electronic signature
func RequireSignature() EdgeOption {
	return func(t *Transition) { t.RequiresSignature = true }
}

// GuardedBy attaches a role guard to the edge
func GuardedBy(guard RoleGuard) EdgeOption {
	return func(t *Transition) { t.Guard = guard }
}
