package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/internal/service/workspace"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/rbac"
)

type Store interface {
	Create(ctx context.Context, t *model.Task) error
	FindByID(ctx context.Context, id int64) (*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID, projectID int64) ([]model.Task, error)
}

type ProjectFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Project, error)
}

type Notifier interface {
	Record(ctx context.Context, userID int64, notificationType, message string) (*model.Notification, error)
}

type Service struct {
	tasks    Store
	projects ProjectFinder
	members  workspace.MemberFinder
	auth     *workspace.Authorizer
	notifier Notifier
	logger   *zap.Logger
}

func NewService(tasks Store, projects ProjectFinder, members workspace.MemberFinder, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		tasks:    tasks,
		projects: projects,
		members:  members,
		auth:     workspace.NewAuthorizer(members),
		notifier: notifier,
		logger:   logger,
	}
}

// List 返回用户可见的任务，projectID > 0 时只返回该项目的任务
func (s *Service) List(ctx context.Context, userID, projectID int64) ([]model.Task, error) {
	if projectID < 0 {
		return nil, apperr.Validation("invalid projectId")
	}
	if projectID > 0 {
		if _, err := s.authorizeProject(ctx, userID, projectID, rbac.PermissionReadWorkspace); err != nil {
			return nil, err
		}
	}
	items, err := s.tasks.ListForUser(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Task{}
	}
	return items, nil
}

type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	ProjectID   int64
	AssigneeID  *int64
}

// Create 默认 status=todo, priority=medium；指派给他人时写 task_assigned 通知
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("task title is required")
	}
	if in.ProjectID <= 0 {
		return nil, apperr.Validation("project_id is required")
	}
	status := in.Status
	if status == "" {
		status = model.StatusTodo
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if err := validateEnums(&status, &priority); err != nil {
		return nil, err
	}

	p, err := s.authorizeProject(ctx, userID, in.ProjectID, rbac.PermissionManageTask)
	if err != nil {
		return nil, err
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, p.WorkspaceID, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	t := &model.Task{
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		ProjectID:   in.ProjectID,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   userID,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", t.ProjectID),
		zap.Int64("user_id", userID),
	)
	s.notifyAssignee(ctx, userID, nil, t)
	return t, nil
}

// Update 部分更新；completed=true 时 status 同时置为 done
func (s *Service) Update(ctx context.Context, userID, taskID int64, upd model.TaskUpdate) (*model.Task, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, apperr.Validation("task title cannot be empty")
	}
	if upd.Status != nil && !model.ValidStatus(*upd.Status) {
		return nil, apperr.Validation("invalid status %q", *upd.Status)
	}
	if upd.Priority != nil && !model.ValidPriority(*upd.Priority) {
		return nil, apperr.Validation("invalid priority %q", *upd.Priority)
	}

	t, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	p, err := s.authorizeProject(ctx, userID, t.ProjectID, rbac.PermissionManageTask)
	if err != nil {
		return nil, err
	}
	if upd.AssigneeID != nil && !upd.ClearAssign {
		if err := s.checkAssignee(ctx, p.WorkspaceID, *upd.AssigneeID); err != nil {
			return nil, err
		}
	}

	previous := t.AssigneeID
	upd.Apply(t)
	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Task updated",
		zap.Int64("task_id", t.ID),
		zap.String("status", t.Status),
		zap.Bool("completed", t.Completed),
		zap.Int64("user_id", userID),
	)
	s.notifyAssignee(ctx, userID, previous, t)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, taskID int64) error {
	t, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.authorizeProject(ctx, userID, t.ProjectID, rbac.PermissionManageTask); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Task deleted", zap.Int64("task_id", taskID), zap.Int64("user_id", userID))
	return nil
}

func (s *Service) authorizeProject(ctx context.Context, userID, projectID int64, permission string) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.Require(ctx, p.WorkspaceID, userID, permission); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) checkAssignee(ctx context.Context, workspaceID, assigneeID int64) error {
	if assigneeID <= 0 {
		return apperr.Validation("invalid assignee_id")
	}
	if _, err := s.members.Find(ctx, workspaceID, assigneeID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("assignee is not a member of this workspace")
		}
		return err
	}
	return nil
}

// notifyAssignee 新的指派人（且不是操作者本人）收到 task_assigned 通知。
// 通知失败只记日志，不影响任务写入。
func (s *Service) notifyAssignee(ctx context.Context, actorID int64, previous *int64, t *model.Task) {
	if t.AssigneeID == nil || *t.AssigneeID == actorID {
		return
	}
	if previous != nil && *previous == *t.AssigneeID {
		return
	}
	message := fmt.Sprintf("You have been assigned to task %q", t.Title)
	if _, err := s.notifier.Record(ctx, *t.AssigneeID, model.NotificationTaskAssigned, message); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to record task_assigned notification",
			zap.Int64("task_id", t.ID),
			zap.Int64("assignee_id", *t.AssigneeID),
			zap.Error(err),
		)
	}
}

func validateEnums(status, priority *string) error {
	if !model.ValidStatus(*status) {
		return apperr.Validation("invalid status %q", *status)
	}
	if !model.ValidPriority(*priority) {
		return apperr.Validation("invalid priority %q", *priority)
	}
	return nil
}
