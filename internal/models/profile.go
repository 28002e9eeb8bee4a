package models

import (
	"strings"
	"time"
)

// Role represents the access level of a staff profile. The wire values match
// the profiles.role column.
type Role string

const (
	RoleUnassigned    Role = "sin_asignar"
	RoleReader        Role = "lector"
	RoleCoordinator   Role = "coordinador"
	RoleAdministrator Role = "administrador"
)

// Roles lists every assignable role.
var Roles = []Role{RoleUnassigned, RoleReader, RoleCoordinator, RoleAdministrator}

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUnassigned, RoleReader, RoleCoordinator, RoleAdministrator:
		return true
	}
	return false
}

// CanAccessDashboard reports whether the role unlocks the dashboard at all.
// Freshly registered accounts stay sin_asignar until an administrator grants
// a role.
func (r Role) CanAccessDashboard() bool {
	return r == RoleReader || r == RoleCoordinator || r == RoleAdministrator
}

// CanEdit reports whether the role may claim, release or save observations.
func (r Role) CanEdit() bool {
	return r == RoleCoordinator || r == RoleAdministrator
}

// CanManageUsers reports whether the role may assign roles to other profiles.
func (r Role) CanManageUsers() bool {
	return r == RoleAdministrator
}

// Profile is a staff account stored in the profiles table.
type Profile struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	Initials     string     `db:"initials" json:"initials"`
	FullName     string     `db:"full_name" json:"full_name"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FallbackProfile builds the degraded profile substituted when the profiles
// row cannot be fetched after the retry budget. The user is gated into the
// pending-approval state rather than locked out.
func FallbackProfile(userID, email string) *Profile {
	if email == "" {
		email = "unknown"
	}
	initials := email
	if len(initials) > 2 {
		initials = initials[:2]
	}
	return &Profile{
		ID:       userID,
		Email:    email,
		Role:     RoleUnassigned,
		Initials: strings.ToUpper(initials),
		FullName: "Usuario",
	}
}
