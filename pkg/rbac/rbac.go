package rbac

// 权限常量
const (
	PermissionReadWorkspace   = "workspace:read"
	PermissionInviteMember    = "workspace:invite"
	PermissionDeleteWorkspace = "workspace:delete"

	PermissionCreateProject = "project:create"
	PermissionDeleteProject = "project:delete"

	PermissionManageTask = "task:manage"
)

// 工作区角色
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleOwner: {
		PermissionReadWorkspace,
		PermissionInviteMember,
		PermissionDeleteWorkspace,
		PermissionCreateProject,
		PermissionDeleteProject,
		PermissionManageTask,
	},
	RoleAdmin: {
		PermissionReadWorkspace,
		PermissionInviteMember,
		PermissionCreateProject,
		PermissionDeleteProject,
		PermissionManageTask,
	},
	RoleMember: {
		PermissionReadWorkspace,
		PermissionCreateProject,
		PermissionManageTask,
	},
}

// ValidRole 角色是否合法
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 同 HasPermission，返回错误便于处理
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 权限不足
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	if e.Role == "" {
		return "insufficient permissions: not a member"
	}
	return "insufficient permissions: role " + e.Role + " lacks " + e.Permission
}
