package models

import "time"

// Role is the principal's role on the booking platform.
type Role string

const (
	RoleCustomer Role = "customer"
	RolePilot    Role = "pilot"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RolePilot, RoleAdmin:
		return true
	}
	return false
}

// User is an authenticated principal. LinkedEntityID points at the pilot or
// customer profile the account acts for, when one exists.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           Role
	LinkedEntityID string
	CreatedAt      time.Time
}
