package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknexus/internal/model"
	"tasknexus/pkg/otel"
)

type MemberRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMemberRepository(db *pgxpool.Pool, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

// FindMembershipsByUser 返回用户的所有成员记录（workspace_id, role）
func (r *MemberRepository) FindMembershipsByUser(ctx context.Context, userID int64) ([]model.WorkspaceMember, error) {
	members := []model.WorkspaceMember{}
	err := otel.Query(ctx, "select", "workspace_members", func(ctx context.Context) (int, error) {
		rows, err := r.db.Query(ctx, `
            SELECT workspace_id, user_id, role, joined_at
            FROM workspace_members
            WHERE user_id = $1
            ORDER BY workspace_id
        `, userID)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var m model.WorkspaceMember
			if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
				return len(members), err
			}
			members = append(members, m)
		}
		return len(members), rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to query memberships", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return members, nil
}

// Find 查找单个成员记录，不存在时返回 NotFound
func (r *MemberRepository) Find(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error) {
	var m model.WorkspaceMember
	err := r.db.QueryRow(ctx, `
        SELECT workspace_id, user_id, role, joined_at
        FROM workspace_members
        WHERE workspace_id = $1 AND user_id = $2
    `, workspaceID, userID).Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, mapError(err, "membership")
	}
	return &m, nil
}

// Insert 插入成员记录，(workspace_id, user_id) 重复时返回 Conflict
func (r *MemberRepository) Insert(ctx context.Context, m *model.WorkspaceMember) error {
	r.logger.Debug("Inserting workspace member",
		zap.Int64("workspace_id", m.WorkspaceID),
		zap.Int64("user_id", m.UserID),
		zap.String("role", m.Role),
	)
	err := r.db.QueryRow(ctx, `
        INSERT INTO workspace_members (workspace_id, user_id, role)
        VALUES ($1, $2, $3)
        RETURNING joined_at
    `, m.WorkspaceID, m.UserID, m.Role).Scan(&m.JoinedAt)
	if err != nil {
		r.logger.Warn("Failed to insert workspace member",
			zap.Int64("workspace_id", m.WorkspaceID),
			zap.Int64("user_id", m.UserID),
			zap.Error(err),
		)
		return mapError(err, "membership")
	}
	r.logger.Info("Workspace member inserted",
		zap.Int64("workspace_id", m.WorkspaceID),
		zap.Int64("user_id", m.UserID),
	)
	return nil
}

// ListByWorkspace 返回成员及用户名、邮箱
func (r *MemberRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.WorkspaceMember, error) {
	rows, err := r.db.Query(ctx, `
        SELECT wm.workspace_id, wm.user_id, wm.role, wm.joined_at, u.username, u.email
        FROM workspace_members wm
        JOIN users u ON u.id = wm.user_id
        WHERE wm.workspace_id = $1
        ORDER BY wm.joined_at ASC, wm.user_id ASC
    `, workspaceID)
	if err != nil {
		r.logger.Error("Failed to query members", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	members := []model.WorkspaceMember{}
	for rows.Next() {
		var m model.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt, &m.Username, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MemberRepository) DeleteByWorkspace(ctx context.Context, workspaceID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM workspace_members WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		r.logger.Error("Failed to delete members", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
