package models

import (
	"slices"
	"time"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// User is owned by the identity provider; this service only reads it,
// except for the student-role grant applied on registration confirmation.
type User struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Roles       []UserRole `json:"roles"`

	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasRole reports whether the user carries the given role. A nil user has no roles.
func (u *User) HasRole(role UserRole) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}
