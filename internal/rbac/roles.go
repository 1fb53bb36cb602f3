package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
	RoleSuperAdmin = "super_admin" // platform staff, never issued by academy login
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsTenantAdmin reports whether role may manage other members' sessions.
func IsTenantAdmin(role string) bool {
	return role == RoleOwner || role == RoleAdmin || IsSuperAdmin(role)
}

func IsValid(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleInstructor, RoleStudent, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
