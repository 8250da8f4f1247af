package session

import (
	"time"

	"github.com/rileyhilliard/proxmon/internal/api"
)

// Identity is a server-confirmed account. SubjectID is the account email,
// which is how the server identifies the caller.
type Identity struct {
	SubjectID    string
	Email        string
	Role         string
	IsSuperadmin bool
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    time.Time
	// UserID is the numeric row id, known only for admin user listings.
	UserID int
}

// IsAdmin reports whether the role is admin.
func (i Identity) IsAdmin() bool {
	return i.Role == api.RoleAdmin
}

// FromMe converts a /me reply. The server refuses inactive accounts on
// /me, so a confirmed identity is always active.
func FromMe(me api.Me) Identity {
	return Identity{
		SubjectID:    me.Email,
		Email:        me.Email,
		Role:         me.Role,
		IsSuperadmin: me.IsSuperadmin,
		IsActive:     true,
		CreatedAt:    me.CreatedAt.Time,
		LastLogin:    me.LastLogin.Time,
	}
}

// FromUser converts an admin user row.
func FromUser(u api.User) Identity {
	return Identity{
		SubjectID:    u.Email,
		Email:        u.Email,
		Role:         u.Role,
		IsSuperadmin: u.IsSuperadmin,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.Time,
		LastLogin:    u.LastLogin.Time,
		UserID:       u.ID,
	}
}
