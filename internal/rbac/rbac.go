package rbac

// Role constants
const (
	RoleGate      = "gate"
	RoleOrganizer = "organizer"
)

// Permission constants
const (
	PermScan      = "scan"
	PermViewLog   = "view_log"
	PermViewStats = "view_stats"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleGate: {
		PermScan, PermViewLog,
	},
	RoleOrganizer: {
		PermScan, PermViewLog, PermViewStats,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// IsRole reports whether role is known.
func IsRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
