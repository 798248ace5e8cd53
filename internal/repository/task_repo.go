package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contractsmq "tasknexus/contracts/mq"
	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/mq"
	"tasknexus/pkg/otel"
	"tasknexus/pkg/outbox"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date, t.project_id,
    t.assignee_id, t.created_by, t.completed, t.created_at, t.updated_at`

func scanTask(row pgx.Row, t *model.Task, extra ...any) error {
	dest := []any{
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.ProjectID,
		&t.AssigneeID, &t.CreatedBy, &t.Completed, &t.CreatedAt, &t.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.Int64("project_id", t.ProjectID),
		zap.String("title", t.Title),
		zap.String("status", t.Status),
	)
	err := r.db.QueryRow(ctx, `
        INSERT INTO tasks (title, description, status, priority, due_date, project_id,
                           assignee_id, created_by, completed)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at, updated_at
    `, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.ProjectID,
		t.AssigneeID, t.CreatedBy, t.Completed,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Int64("project_id", t.ProjectID),
			zap.Error(err),
		)
		return mapError(err, "task")
	}
	r.logger.Info("Task inserted successfully",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := scanTask(r.db.QueryRow(ctx, `
        SELECT `+taskColumns+`, u.username
        FROM tasks t
        LEFT JOIN users u ON u.id = t.assignee_id
        WHERE t.id = $1
    `, id), &t, &t.AssigneeName)
	if err != nil {
		return nil, mapError(err, "task")
	}
	return &t, nil
}

// Update 写回所有可变字段并刷新 updated_at；due_date 变化时重置逾期提醒标记
func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Updating task", zap.Int64("task_id", t.ID))
	err := r.db.QueryRow(ctx, `
        UPDATE tasks
        SET title = $2,
            description = $3,
            status = $4,
            priority = $5,
            overdue_notified_at = CASE WHEN due_date IS DISTINCT FROM $6 THEN NULL
                                       ELSE overdue_notified_at END,
            due_date = $6,
            assignee_id = $7,
            completed = $8,
            updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.AssigneeID, t.Completed,
	).Scan(&t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("task_id", t.ID), zap.Error(err))
		return mapError(err, "task")
	}
	r.logger.Info("Task updated", zap.Int64("task_id", t.ID), zap.String("status", t.Status))
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.Int64("task_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task %d", id)
	}
	r.logger.Info("Task deleted", zap.Int64("task_id", id))
	return nil
}

// ListForUser 返回用户可见的任务（所在工作区的全部项目），projectID 为 0 时不过滤
func (r *TaskRepository) ListForUser(ctx context.Context, userID, projectID int64) ([]model.Task, error) {
	r.logger.Debug("Listing tasks for user",
		zap.Int64("user_id", userID),
		zap.Int64("project_id", projectID),
	)
	rows, err := r.db.Query(ctx, `
        SELECT `+taskColumns+`, u.username
        FROM tasks t
        JOIN projects p ON p.id = t.project_id
        JOIN workspace_members wm ON wm.workspace_id = p.workspace_id AND wm.user_id = $1
        LEFT JOIN users u ON u.id = t.assignee_id
        WHERE ($2::bigint = 0 OR t.project_id = $2::bigint)
        ORDER BY t.created_at DESC, t.id DESC
    `, userID, projectID)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := scanTask(rows, &t, &t.AssigneeName); err != nil {
			r.logger.Error("Failed to scan task row", zap.Int64("user_id", userID), zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// FindByProjects 一次查询读取给定项目集合的全部任务
func (r *TaskRepository) FindByProjects(ctx context.Context, projectIDs []int64) ([]model.Task, error) {
	tasks := []model.Task{}
	if len(projectIDs) == 0 {
		return tasks, nil
	}

	err := otel.Query(ctx, "select", "tasks", func(ctx context.Context) (int, error) {
		rows, err := r.db.Query(ctx, `
            SELECT `+taskColumns+`
            FROM tasks t
            WHERE t.project_id = ANY($1)
            ORDER BY t.id
        `, projectIDs)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			var t model.Task
			if err := scanTask(rows, &t); err != nil {
				return len(tasks), err
			}
			tasks = append(tasks, t)
		}
		return len(tasks), rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to scan tasks by projects",
			zap.Int("project_count", len(projectIDs)),
			zap.Error(err),
		)
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) DeleteByProjects(ctx context.Context, projectIDs []int64) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = ANY($1)`, projectIDs)
	if err != nil {
		r.logger.Error("Failed to delete tasks", zap.Int("project_count", len(projectIDs)), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ClaimOverdue 标记一批逾期且有负责人的任务，并在同一事务中写入 task.overdue 事件。
// 每个任务在 due_date 不变的情况下只会被认领一次。
func (r *TaskRepository) ClaimOverdue(ctx context.Context, limit int, traceID string) ([]model.Task, error) {
	tasks := []model.Task{}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            UPDATE tasks t
            SET overdue_notified_at = NOW()
            WHERE t.id IN (
                SELECT id FROM tasks
                WHERE due_date < NOW()
                  AND status <> 'done'
                  AND assignee_id IS NOT NULL
                  AND overdue_notified_at IS NULL
                ORDER BY due_date
                LIMIT $1
                FOR UPDATE SKIP LOCKED
            )
            RETURNING `+taskColumns, limit)
		if err != nil {
			return fmt.Errorf("claim overdue tasks: %w", err)
		}
		for rows.Next() {
			var t model.Task
			if err := scanTask(rows, &t); err != nil {
				rows.Close()
				return err
			}
			tasks = append(tasks, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, t := range tasks {
			payload := contractsmq.TaskOverduePayload{
				TaskID:     t.ID,
				ProjectID:  t.ProjectID,
				AssigneeID: *t.AssigneeID,
				Title:      t.Title,
				DueDate:    *t.DueDate,
				TraceID:    traceID,
			}
			if _, err := outbox.InsertEventInTx(ctx, tx, "task", t.ID, mq.RoutingKeyTaskOverdue, payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to claim overdue tasks", zap.Error(err))
		return nil, err
	}
	if len(tasks) > 0 {
		r.logger.Info("Overdue tasks claimed", zap.Int("count", len(tasks)))
	}
	return tasks, nil
}
