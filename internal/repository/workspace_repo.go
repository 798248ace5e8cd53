package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
)

type WorkspaceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewWorkspaceRepository(db *pgxpool.Pool, logger *zap.Logger) *WorkspaceRepository {
	return &WorkspaceRepository{db: db, logger: logger}
}

// Create 插入工作区以及 owner 成员记录（同一事务）
func (r *WorkspaceRepository) Create(ctx context.Context, ws *model.Workspace) error {
	r.logger.Debug("Creating workspace",
		zap.Int64("owner_id", ws.OwnerID),
		zap.String("name", ws.Name),
	)

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO workspaces (name, description, owner_id)
            VALUES ($1, $2, $3)
            RETURNING id, created_at
        `, ws.Name, ws.Description, ws.OwnerID).Scan(&ws.ID, &ws.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO workspace_members (workspace_id, user_id, role)
            VALUES ($1, $2, 'owner')
        `, ws.ID, ws.OwnerID)
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create workspace", zap.Int64("owner_id", ws.OwnerID), zap.Error(err))
		return mapError(err, "workspace")
	}

	ws.Role = model.RoleOwner
	r.logger.Info("Workspace created successfully",
		zap.Int64("workspace_id", ws.ID),
		zap.Int64("owner_id", ws.OwnerID),
	)
	return nil
}

func (r *WorkspaceRepository) FindByID(ctx context.Context, id int64) (*model.Workspace, error) {
	var ws model.Workspace
	err := r.db.QueryRow(ctx, `
        SELECT id, name, description, owner_id, created_at
        FROM workspaces
        WHERE id = $1
    `, id).Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		return nil, mapError(err, "workspace")
	}
	return &ws, nil
}

// ListByUser 返回用户加入的工作区及其角色，最新的在前
func (r *WorkspaceRepository) ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error) {
	r.logger.Debug("Listing workspaces for user", zap.Int64("user_id", userID))
	rows, err := r.db.Query(ctx, `
        SELECT w.id, w.name, w.description, w.owner_id, w.created_at, wm.role
        FROM workspaces w
        JOIN workspace_members wm ON wm.workspace_id = w.id
        WHERE wm.user_id = $1
        ORDER BY w.created_at DESC, w.id DESC
    `, userID)
	if err != nil {
		r.logger.Error("Failed to query workspaces", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	workspaces := []model.Workspace{}
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.CreatedAt, &ws.Role); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// Delete 只删除工作区本身，成员/项目/任务由调用方先行清理
func (r *WorkspaceRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete workspace", zap.Int64("workspace_id", id), zap.Error(err))
		return mapError(err, "workspace")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("workspace %d", id)
	}
	r.logger.Info("Workspace deleted", zap.Int64("workspace_id", id))
	return nil
}
