package auth

// Role represents an API key role with hierarchical permissions
type Role int

const (
	// Readonly may inspect configuration and reports
	Readonly Role = iota
	// Admin may trigger runs and targeted checks
	Admin
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Readonly:
		return "readonly"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role
func ParseRole(roleStr string) Role {
	switch roleStr {
	case "admin":
		return Admin
	case "readonly":
		return Readonly
	default:
		return Readonly // Default to lowest privilege
	}
}

// HasPermission checks if the role has sufficient permissions for the required role
// Higher roles automatically have permissions for lower roles
func (r Role) HasPermission(required Role) bool {
	return r >= required
}
