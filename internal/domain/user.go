package domain

import "time"

// UserRole enumerates platform roles.
type UserRole string

const (
	RoleVoter    UserRole = "VOTER"
	RoleOfficial UserRole = "OFFICIAL"
	RoleAdmin    UserRole = "ADMIN"
)

// CanHoldAssignment reports whether the role may own or change an incident assignment.
func (r UserRole) CanHoldAssignment() bool {
	return r == RoleOfficial || r == RoleAdmin
}

// User models a registered platform account: voters report incidents,
// officials and admins handle them.
type User struct {
	ID           string
	Name         string
	PhoneNumber  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
