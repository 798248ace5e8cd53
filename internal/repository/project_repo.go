package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/otel"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.Int64("workspace_id", p.WorkspaceID),
		zap.String("name", p.Name),
	)
	err := r.db.QueryRow(ctx, `
        INSERT INTO projects (name, description, color, workspace_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, p.Name, p.Description, p.Color, p.WorkspaceID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Int64("workspace_id", p.WorkspaceID), zap.Error(err))
		return mapError(err, "project")
	}
	r.logger.Info("Project inserted successfully",
		zap.Int64("project_id", p.ID),
		zap.Int64("workspace_id", p.WorkspaceID),
	)
	return nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := r.db.QueryRow(ctx, `
        SELECT p.id, p.name, p.description, p.color, p.workspace_id, p.created_at,
               COUNT(t.id), COUNT(t.id) FILTER (WHERE t.status = 'done')
        FROM projects p
        LEFT JOIN tasks t ON t.project_id = p.id
        WHERE p.id = $1
        GROUP BY p.id
    `, id).Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.WorkspaceID, &p.CreatedAt,
		&p.TaskCount, &p.CompletedCount)
	if err != nil {
		return nil, mapError(err, "project")
	}
	return &p, nil
}

// ListByWorkspace 返回工作区下的项目及任务数、完成数（一次分组查询）
func (r *ProjectRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Project, error) {
	r.logger.Debug("Listing projects", zap.Int64("workspace_id", workspaceID))
	rows, err := r.db.Query(ctx, `
        SELECT p.id, p.name, p.description, p.color, p.workspace_id, p.created_at,
               COUNT(t.id), COUNT(t.id) FILTER (WHERE t.status = 'done')
        FROM projects p
        LEFT JOIN tasks t ON t.project_id = p.id
        WHERE p.workspace_id = $1
        GROUP BY p.id
        ORDER BY p.created_at DESC, p.id DESC
    `, workspaceID)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.WorkspaceID, &p.CreatedAt,
			&p.TaskCount, &p.CompletedCount); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// FindByWorkspaces 返回属于给定工作区集合的所有项目
func (r *ProjectRepository) FindByWorkspaces(ctx context.Context, workspaceIDs []int64) ([]model.Project, error) {
	projects := []model.Project{}
	if len(workspaceIDs) == 0 {
		return projects, nil
	}

	err := otel.Query(ctx, "select", "projects", func(ctx context.Context) (int, error) {
		rows, err := r.db.Query(ctx, `
            SELECT id, name, description, color, workspace_id, created_at
            FROM projects
            WHERE workspace_id = ANY($1)
            ORDER BY id
        `, workspaceIDs)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var p model.Project
			if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.WorkspaceID, &p.CreatedAt); err != nil {
				return len(projects), err
			}
			projects = append(projects, p)
		}
		return len(projects), rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to query projects by workspaces",
			zap.Int("workspace_count", len(workspaceIDs)),
			zap.Error(err),
		)
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.Int64("project_id", id), zap.Error(err))
		return mapError(err, "project")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("project %d", id)
	}
	r.logger.Info("Project deleted", zap.Int64("project_id", id))
	return nil
}

func (r *ProjectRepository) DeleteByWorkspace(ctx context.Context, workspaceID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		r.logger.Error("Failed to delete projects", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		return 0, mapError(err, "project")
	}
	return tag.RowsAffected(), nil
}
