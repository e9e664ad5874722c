package domain

import "time"

// Role is the caller's role in the helpdesk.
type Role string

const (
	RoleMember        Role = "member"
	RoleAdministrator Role = "administrator"
)

func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleAdministrator
}

// Account is a person who can sign in, either a member filing tickets or an administrator.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
