package domain

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// Principal is the authenticated caller as established by the auth
// collaborator.
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// MayAccess reports whether the principal may act on resources owned by
// userID (owner or admin).
func (p Principal) MayAccess(userID int64) bool {
	return p.IsAdmin() || p.UserID == userID
}
