package authz

import (
	"testing"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(email, role string, superadmin bool) session.Identity {
	return session.Identity{SubjectID: email, Email: email, Role: role, IsSuperadmin: superadmin, IsActive: true}
}

var (
	root   = ident("root@lab", "admin", true)
	admin  = ident("ops@lab", "admin", false)
	admin2 = ident("net@lab", "admin", false)
	user   = ident("dev@lab", "user", false)
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		name       string
		viewer     session.Identity
		superadmin bool
		want       Capabilities
	}{
		{
			name: "no identity",
			want: Capabilities{},
		},
		{
			name:   "user",
			viewer: user,
			want:   Capabilities{viewer: user},
		},
		{
			name:   "admin",
			viewer: admin,
			want: Capabilities{
				CanEditSystemSettings: true, CanManageUsers: true, CanViewAuditLog: true,
				viewer: admin,
			},
		},
		{
			name:       "superadmin",
			viewer:     root,
			superadmin: true,
			want: Capabilities{
				CanEditSystemSettings: true, CanManageUsers: true, CanViewAuditLog: true,
				CanClearAuditLog: true, CanAssignAdminRole: true,
				viewer: root, superadmin: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CapabilitiesFor(tt.viewer, tt.superadmin))
		})
	}
}

func TestCanActOn_TripleGuard(t *testing.T) {
	everyone := []session.Identity{root, admin, admin2, user}

	for _, viewer := range everyone {
		for _, super := range []bool{false, true} {
			assert.False(t, CanActOn(viewer, super, viewer), "self: %s", viewer.Email)
			assert.False(t, CanActOn(viewer, super, root), "superadmin target: %s", viewer.Email)
		}
	}

	assert.False(t, CanActOn(admin, false, admin2), "admin on admin needs superadmin")
	assert.True(t, CanActOn(admin, false, user))
	assert.True(t, CanActOn(root, true, admin))
	assert.True(t, CanActOn(root, true, user))
	assert.False(t, CanActOn(session.Identity{}, true, user), "no viewer")
}

func TestFromState_ProvisionalGrantsNothing(t *testing.T) {
	prov := session.State{
		Kind:   session.Provisional,
		Claims: session.Claims{Subject: "root@lab", Role: "admin"},
	}
	caps := FromState(prov)
	assert.False(t, caps.Any())
	assert.False(t, caps.CanActOn(user))

	conf := FromState(session.State{Kind: session.Confirmed, Identity: root})
	assert.True(t, conf.CanAssignAdminRole)
	assert.True(t, conf.CanActOn(admin))
}

func TestCheck(t *testing.T) {
	adminCaps := CapabilitiesFor(admin, false)
	rootCaps := CapabilitiesFor(root, true)
	userCaps := CapabilitiesFor(user, false)

	tests := []struct {
		name   string
		caps   Capabilities
		action Action
		target *session.Identity
		code   string
		reason string
	}{
		{name: "admin edits settings", caps: adminCaps, action: ActionEditSettings},
		{name: "user edits settings", caps: userCaps, action: ActionEditSettings, code: errors.ErrPermission},
		{name: "admin views audit", caps: adminCaps, action: ActionViewAuditLog},
		{name: "admin clears audit", caps: adminCaps, action: ActionClearAuditLog, code: errors.ErrPermission, reason: "superadmin"},
		{name: "superadmin clears audit", caps: rootCaps, action: ActionClearAuditLog},
		{name: "admin creates admin", caps: adminCaps, action: ActionCreateAdmin, code: errors.ErrPermission},
		{name: "admin creates user", caps: adminCaps, action: ActionCreateUser},
		{name: "admin toggles user", caps: adminCaps, action: ActionToggleActive, target: &user},
		{name: "admin changes own role", caps: adminCaps, action: ActionChangeRole, target: &admin, code: errors.ErrPermission, reason: "own account"},
		{name: "admin deletes superadmin", caps: adminCaps, action: ActionDeleteUser, target: &root, code: errors.ErrPermission, reason: "Superadmin"},
		{name: "superadmin resets admin", caps: rootCaps, action: ActionResetPassword, target: &admin},
		{name: "user toggles user", caps: userCaps, action: ActionToggleActive, target: &admin2, code: errors.ErrPermission},
		{name: "missing target", caps: adminCaps, action: ActionDeleteUser, code: errors.ErrInput},
		{name: "unconfirmed", caps: Capabilities{}, action: ActionListUsers, code: errors.ErrPermission, reason: "not been confirmed"},
		{name: "unknown", caps: rootCaps, action: Action("launch"), code: errors.ErrPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.caps, tt.action, tt.target)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			if tt.reason != "" {
				assert.Contains(t, errors.Message(err), tt.reason)
			}
		})
	}
}

// An admin who is not a superadmin is refused before any request is built
// when targeting another admin.
func TestScenario_AdminCannotChangeAdminRole(t *testing.T) {
	confirmed := session.State{Kind: session.Confirmed, Identity: admin}
	caps := FromState(confirmed)

	require.True(t, caps.CanManageUsers)
	assert.False(t, caps.CanActOn(admin2))

	err := Check(caps, ActionChangeRole, &admin2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermission, errors.Code(err))
	assert.Equal(t, "Only a superadmin can change another admin", errors.Message(err))
}
