package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/metrics"
	"tasknexus/pkg/rbac"
)

type WorkspaceStore interface {
	Create(ctx context.Context, ws *model.Workspace) error
	FindByID(ctx context.Context, id int64) (*model.Workspace, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error)
	Delete(ctx context.Context, id int64) error
}

type MemberStore interface {
	MemberFinder
	Insert(ctx context.Context, m *model.WorkspaceMember) error
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.WorkspaceMember, error)
	DeleteByWorkspace(ctx context.Context, workspaceID int64) (int64, error)
}

type ProjectStore interface {
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Project, error)
	DeleteByWorkspace(ctx context.Context, workspaceID int64) (int64, error)
}

type TaskStore interface {
	DeleteByProjects(ctx context.Context, projectIDs []int64) (int64, error)
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Notifier 通知账本
type Notifier interface {
	Record(ctx context.Context, userID int64, notificationType, message string) (*model.Notification, error)
}

type Service struct {
	workspaces WorkspaceStore
	members    MemberStore
	projects   ProjectStore
	tasks      TaskStore
	users      UserFinder
	notifier   Notifier
	auth       *Authorizer
	logger     *zap.Logger
}

func NewService(
	workspaces WorkspaceStore,
	members MemberStore,
	projects ProjectStore,
	tasks TaskStore,
	users UserFinder,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		workspaces: workspaces,
		members:    members,
		projects:   projects,
		tasks:      tasks,
		users:      users,
		notifier:   notifier,
		auth:       NewAuthorizer(members),
		logger:     logger,
	}
}

// Create 创建工作区，创建者成为 owner
func (s *Service) Create(ctx context.Context, ownerID int64, name, description string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("workspace name is required")
	}

	ws := &model.Workspace{Name: name, Description: description, OwnerID: ownerID}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, err
	}
	logger.WithTrace(ctx, s.logger).Info("Workspace created",
		zap.Int64("workspace_id", ws.ID),
		zap.Int64("owner_id", ownerID),
	)
	return ws, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]model.Workspace, error) {
	items, err := s.workspaces.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Workspace{}
	}
	return items, nil
}

// Get 仅成员可见
func (s *Service) Get(ctx context.Context, userID, workspaceID int64) (*model.Workspace, error) {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	m, err := s.auth.Require(ctx, workspaceID, userID, rbac.PermissionReadWorkspace)
	if err != nil {
		return nil, err
	}
	ws.Role = m.Role
	return ws, nil
}

func (s *Service) Members(ctx context.Context, userID, workspaceID int64) ([]model.WorkspaceMember, error) {
	if _, err := s.Get(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	items, err := s.members.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.WorkspaceMember{}
	}
	return items, nil
}

// Delete 仅 owner。依次删除 tasks -> projects -> members -> workspace，
// 不在同一事务中，中途失败会留下部分删除的状态，重试可继续完成。
func (s *Service) Delete(ctx context.Context, userID, workspaceID int64) error {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("workspace_id", workspaceID))

	if _, err := s.workspaces.FindByID(ctx, workspaceID); err != nil {
		return err
	}
	if _, err := s.auth.Require(ctx, workspaceID, userID, rbac.PermissionDeleteWorkspace); err != nil {
		return err
	}

	projects, err := s.projects.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		ids := make([]int64, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		deleted, err := s.tasks.DeleteByProjects(ctx, ids)
		if err != nil {
			log.Error("Workspace delete: failed to delete tasks", zap.Error(err))
			return err
		}
		log.Debug("Workspace delete: tasks removed", zap.Int64("count", deleted))
	}

	if _, err := s.projects.DeleteByWorkspace(ctx, workspaceID); err != nil {
		log.Error("Workspace delete: failed to delete projects", zap.Error(err))
		return err
	}
	if _, err := s.members.DeleteByWorkspace(ctx, workspaceID); err != nil {
		log.Error("Workspace delete: failed to delete members", zap.Error(err))
		return err
	}
	if err := s.workspaces.Delete(ctx, workspaceID); err != nil {
		log.Error("Workspace delete: failed to delete workspace", zap.Error(err))
		return err
	}

	log.Info("Workspace deleted", zap.Int64("user_id", userID), zap.Int("projects", len(projects)))
	return nil
}

// Invite 按邮箱邀请用户加入工作区（角色 member），随后给被邀请人写一条 invite 通知。
// 两步互相独立：通知失败时返回错误，但成员关系保留。
func (s *Service) Invite(ctx context.Context, inviterID, workspaceID int64, email string) (*model.WorkspaceMember, error) {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.Int64("workspace_id", workspaceID),
		zap.Int64("inviter_id", inviterID),
	)

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.Require(ctx, workspaceID, inviterID, rbac.PermissionInviteMember); err != nil {
		return nil, err
	}

	invitee, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.IncrementInvite("not_found")
			return nil, apperr.NotFound("no user registered with email %s", email)
		}
		return nil, err
	}

	_, err = s.members.Find(ctx, workspaceID, invitee.ID)
	switch {
	case err == nil:
		metrics.IncrementInvite("conflict")
		return nil, apperr.Conflict("user is already a member of this workspace")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	member := &model.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      invitee.ID,
		Role:        model.RoleMember,
	}
	// 并发邀请时唯一索引兜底，repository 已映射为同样的 Conflict
	if err := s.members.Insert(ctx, member); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			metrics.IncrementInvite("conflict")
		}
		return nil, err
	}
	member.Username = invitee.Username
	member.Email = invitee.Email

	message := fmt.Sprintf("You have been invited to workspace %q", ws.Name)
	if _, err := s.notifier.Record(ctx, invitee.ID, model.NotificationInvite, message); err != nil {
		metrics.IncrementInvite("notify_failed")
		log.Error("Invite: member added but notification failed",
			zap.Int64("invitee_id", invitee.ID),
			zap.Error(err),
		)
		return member, fmt.Errorf("member added but notification failed: %w", err)
	}

	metrics.IncrementInvite("created")
	log.Info("Invite: member added", zap.Int64("invitee_id", invitee.ID))
	return member, nil
}
