package rbac

// Organization role names as reported by the backend. Keep these stable; they are part of
// the role endpoint contract.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// IsAdmin reports whether role administers its organization.
func IsAdmin(role string) bool { return role == RoleOwner || role == RoleAdmin }

func IsValid(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}
