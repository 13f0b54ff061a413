package domain

import "time"

// Role enumerates the capability tiers for actors.
type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is a known enum value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for anyone who files or works tickets.
// Tickets reference users, never own them.
type User struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the authenticated identity performing an operation. It is
// supplied by the authentication collaborator and trusted as-is.
type Actor struct {
	ID   string
	Role Role
}
