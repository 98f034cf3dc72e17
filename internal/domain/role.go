package domain

// Role determines which operations an account may perform.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValidRole reports whether the given string is a known role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}
