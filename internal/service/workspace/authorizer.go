package workspace

import (
	"context"
	"errors"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/rbac"
)

type MemberFinder interface {
	Find(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error)
}

// Authorizer 根据成员角色检查工作区权限，project/task 服务共用
type Authorizer struct {
	members MemberFinder
}

func NewAuthorizer(members MemberFinder) *Authorizer {
	return &Authorizer{members: members}
}

// Require 返回用户在工作区的成员记录；非成员或角色不足返回 Forbidden
func (a *Authorizer) Require(ctx context.Context, workspaceID, userID int64, permission string) (*model.WorkspaceMember, error) {
	m, err := a.members.Find(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden("not a member of workspace %d", workspaceID)
		}
		return nil, err
	}
	if err := rbac.CheckPermission(m.Role, permission); err != nil {
		return nil, apperr.Forbidden("%s", err.Error())
	}
	return m, nil
}
