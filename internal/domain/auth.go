package domain

// Identity is the verified caller handed to the collaboration service by the boundary.
type Identity struct {
	AccountID int64
	Role      Role
}

// IsAdministrator reports whether the identity carries the administrator role.
func (i Identity) IsAdministrator() bool {
	return i.Role == RoleAdministrator
}
