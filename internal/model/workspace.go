package model

import "time"

// 工作区成员角色
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Workspace struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	// 当前用户在该工作区的角色，仅列表接口填充
	Role string `json:"role,omitempty"`
}

type WorkspaceMember struct {
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
}
