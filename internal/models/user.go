package models

import "time"

// UserRole represents the caller-facing roles of the platform.
type UserRole string

const (
	RoleAuthor   UserRole = "AUTHOR"
	RoleReviewer UserRole = "REVIEWER"
	RoleAdmin    UserRole = "ADMIN"

	// RoleSystem is a pseudo-role for automatic transitions. It is never a
	// valid claim value and must never be accepted from an external caller.
	RoleSystem UserRole = "SYSTEM"
)

// ValidCallerRole reports whether the role may appear on an external request.
func ValidCallerRole(role UserRole) bool {
	switch role {
	case RoleAuthor, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Affiliation  string     `db:"affiliation" json:"affiliation,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
