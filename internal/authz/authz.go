// Package authz derives what the caller may do from the server-confirmed
// identity. It is the only place privilege rules are written down; commands
// and views ask it before sending a privileged request.
package authz

import (
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/session"
)

// Action names a privileged operation.
type Action string

const (
	ActionEditSettings  Action = "edit-settings"
	ActionListUsers     Action = "list-users"
	ActionCreateUser    Action = "create-user"
	ActionCreateAdmin   Action = "create-admin"
	ActionChangeRole    Action = "change-role"
	ActionToggleActive  Action = "toggle-active"
	ActionResetPassword Action = "reset-password"
	ActionDeleteUser    Action = "delete-user"
	ActionViewAuditLog  Action = "view-audit-log"
	ActionClearAuditLog Action = "clear-audit-log"
)

// targeted reports whether the action is aimed at another account.
func (a Action) targeted() bool {
	switch a {
	case ActionChangeRole, ActionToggleActive, ActionResetPassword, ActionDeleteUser:
		return true
	}
	return false
}

// Capabilities is the permission set for one confirmed identity. It is
// recomputed from every new identity snapshot and never stored.
type Capabilities struct {
	CanEditSystemSettings bool
	CanManageUsers        bool
	CanViewAuditLog       bool
	CanClearAuditLog      bool
	CanAssignAdminRole    bool

	viewer     session.Identity
	superadmin bool
}

// CapabilitiesFor derives the capability set. A zero identity grants
// nothing.
func CapabilitiesFor(confirmed session.Identity, viewerIsSuperadmin bool) Capabilities {
	if confirmed.SubjectID == "" {
		return Capabilities{}
	}
	admin := confirmed.IsAdmin() || viewerIsSuperadmin
	return Capabilities{
		CanEditSystemSettings: admin,
		CanManageUsers:        admin,
		CanViewAuditLog:       admin,
		CanClearAuditLog:      viewerIsSuperadmin,
		CanAssignAdminRole:    viewerIsSuperadmin,
		viewer:                confirmed,
		superadmin:            viewerIsSuperadmin,
	}
}

// FromState derives capabilities from a resolver snapshot. Provisional
// claims grant nothing, whatever role they carry.
func FromState(s session.State) Capabilities {
	if s.Kind != session.Confirmed {
		return Capabilities{}
	}
	return CapabilitiesFor(s.Identity, s.Identity.IsSuperadmin)
}

// Any reports whether any capability is granted.
func (c Capabilities) Any() bool {
	return c.CanEditSystemSettings || c.CanManageUsers || c.CanViewAuditLog ||
		c.CanClearAuditLog || c.CanAssignAdminRole
}

// CanActOn reports whether the holder may change target.
func (c Capabilities) CanActOn(target session.Identity) bool {
	return c.CanManageUsers && CanActOn(c.viewer, c.superadmin, target)
}

// CanActOn is false when target is the viewer, when target is a superadmin,
// or when target is an admin and the viewer is not a superadmin.
func CanActOn(viewer session.Identity, viewerIsSuperadmin bool, target session.Identity) bool {
	if viewer.SubjectID == "" {
		return false
	}
	return refusal(viewer, viewerIsSuperadmin, target) == ""
}

// refusal returns why viewer may not act on target, or "".
func refusal(viewer session.Identity, viewerIsSuperadmin bool, target session.Identity) string {
	switch {
	case target.SubjectID == viewer.SubjectID:
		return "You cannot change your own account here"
	case target.IsSuperadmin:
		return "Superadmin accounts cannot be changed"
	case target.IsAdmin() && !viewerIsSuperadmin:
		return "Only a superadmin can change another admin"
	}
	return ""
}

// Check returns nil when caps allow action, or a PERMISSION error naming
// why not. target is required for actions aimed at an account.
func Check(caps Capabilities, action Action, target *session.Identity) error {
	if caps.viewer.SubjectID == "" {
		return errors.New(errors.ErrPermission,
			"Your identity has not been confirmed by the server",
			"Run 'proxmon whoami' to check your session")
	}

	switch action {
	case ActionEditSettings:
		if !caps.CanEditSystemSettings {
			return denied("Only admins can change system settings")
		}
	case ActionListUsers, ActionCreateUser:
		if !caps.CanManageUsers {
			return denied("Only admins can manage users")
		}
	case ActionCreateAdmin:
		if !caps.CanAssignAdminRole {
			return denied("Only a superadmin can create admin accounts")
		}
	case ActionViewAuditLog:
		if !caps.CanViewAuditLog {
			return denied("Only admins can view the audit log")
		}
	case ActionClearAuditLog:
		if !caps.CanClearAuditLog {
			return denied("Only a superadmin can clear the audit log")
		}
	default:
		if !action.targeted() {
			return denied("Unknown action " + string(action))
		}
		if !caps.CanManageUsers {
			return denied("Only admins can manage users")
		}
		if target == nil {
			return errors.New(errors.ErrInput, "No target account given", "")
		}
		if reason := refusal(caps.viewer, caps.superadmin, *target); reason != "" {
			return denied(reason)
		}
	}
	return nil
}

func denied(msg string) error {
	return errors.New(errors.ErrPermission, msg, "")
}
