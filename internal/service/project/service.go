package project

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/internal/service/workspace"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/rbac"
)

type Store interface {
	Create(ctx context.Context, p *model.Project) error
	FindByID(ctx context.Context, id int64) (*model.Project, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Project, error)
	Delete(ctx context.Context, id int64) error
}

type TaskDeleter interface {
	DeleteByProjects(ctx context.Context, projectIDs []int64) (int64, error)
}

type Service struct {
	projects Store
	tasks    TaskDeleter
	auth     *workspace.Authorizer
	logger   *zap.Logger
}

func NewService(projects Store, tasks TaskDeleter, members workspace.MemberFinder, logger *zap.Logger) *Service {
	return &Service{
		projects: projects,
		tasks:    tasks,
		auth:     workspace.NewAuthorizer(members),
		logger:   logger,
	}
}

func (s *Service) ListByWorkspace(ctx context.Context, userID, workspaceID int64) ([]model.Project, error) {
	if _, err := s.auth.Require(ctx, workspaceID, userID, rbac.PermissionReadWorkspace); err != nil {
		return nil, err
	}
	items, err := s.projects.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Project{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, userID, projectID int64) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.Require(ctx, p.WorkspaceID, userID, rbac.PermissionReadWorkspace); err != nil {
		return nil, err
	}
	return p, nil
}

type CreateInput struct {
	Name        string
	Description string
	Color       string
	WorkspaceID int64
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("project name is required")
	}
	if in.WorkspaceID <= 0 {
		return nil, apperr.Validation("workspaceId is required")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultProjectColor
	}

	if _, err := s.auth.Require(ctx, in.WorkspaceID, userID, rbac.PermissionCreateProject); err != nil {
		return nil, err
	}

	p := &model.Project{
		Name:        name,
		Description: in.Description,
		Color:       color,
		WorkspaceID: in.WorkspaceID,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.Int64("project_id", p.ID),
		zap.Int64("workspace_id", p.WorkspaceID),
		zap.Int64("user_id", userID),
	)
	return p, nil
}

// Delete 先删任务再删项目，两步不在同一事务里
func (s *Service) Delete(ctx context.Context, userID, projectID int64) error {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := s.auth.Require(ctx, p.WorkspaceID, userID, rbac.PermissionDeleteProject); err != nil {
		return err
	}

	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("project_id", projectID))
	deleted, err := s.tasks.DeleteByProjects(ctx, []int64{projectID})
	if err != nil {
		log.Error("Project delete: failed to delete tasks", zap.Error(err))
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		log.Error("Project delete: failed to delete project", zap.Error(err))
		return err
	}

	log.Info("Project deleted", zap.Int64("user_id", userID), zap.Int64("tasks_deleted", deleted))
	return nil
}
