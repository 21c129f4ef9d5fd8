package model

// Role is the role of a user inside their company.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Principal is the authenticated session identity attached to a request.
type Principal struct {
	UserID    string
	CompanyID string
	Email     string
	Role      Role
}

// IsAdmin reports whether the principal administers its company.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
