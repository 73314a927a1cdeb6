package authstate

// Role is the authorization level assigned to a user
type Role string

const (
	// RoleUser is the default role (regular authenticated access)
	RoleUser Role = "user"
	// RoleOperator can operate managed resources but not administer accounts
	RoleOperator Role = "operator"
	// RoleAdmin can administer accounts and settings
	RoleAdmin Role = "admin"
	// RoleSuperAdmin has unrestricted access, including role management
	RoleSuperAdmin Role = "superadmin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleOperator, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleUser:       0,
		RoleOperator:   1,
		RoleAdmin:      2,
		RoleSuperAdmin: 3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleOperator,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
