package models

// user roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TokenPayload is authenticated caller resolved from token
type TokenPayload struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether caller may use admin operations
func (p *TokenPayload) IsAdmin() bool {
	return p.Role == RoleAdmin
}
