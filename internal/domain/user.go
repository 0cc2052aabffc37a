package domain

import "time"

// Role represents a user's permission level and determines the borrowing
// quota applied when a loan is created.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "admin"
	// RoleMember is a paying member with a raised borrowing quota.
	RoleMember Role = "member"
	// RoleUser is a regular registered user.
	RoleUser Role = "user"
)

// ValidRole reports whether r is a role that can be persisted.
// Guests exist only client-side and are never stored.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleMember || r == RoleUser
}

// Label returns the Chinese display label for the role, as shown in quota
// denial messages and the admin user list.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "管理员"
	case RoleMember:
		return "会员用户"
	default:
		return "普通用户"
	}
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Age          *int      `json:"age,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserPatch is an explicit partial update for a user. Self-service updates
// may only carry Name, Email, Phone and Age; the admin path may additionally
// set Role and Password (already hashed by the service).
type UserPatch struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Age          *int    `json:"age,omitempty"`
	AgeSet       bool    `json:"-"` // distinguishes "clear age" from "leave age"
	Role         *Role   `json:"role,omitempty"`
	PasswordHash *string `json:"-"`
}

// IsZero reports whether the patch carries no fields.
func (p UserPatch) IsZero() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		!p.AgeSet && p.Role == nil && p.PasswordHash == nil
}

// ValidAge reports whether age is inside the accepted range.
func ValidAge(age int) bool {
	return age >= 0 && age <= 150
}
