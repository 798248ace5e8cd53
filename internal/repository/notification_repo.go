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
	"tasknexus/pkg/outbox"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Insert 写入一条未读通知，并在同一事务中写入 notification.created 事件
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification, traceID string) error {
	r.logger.Debug("Inserting notification",
		zap.Int64("user_id", n.UserID),
		zap.String("type", n.Type),
	)

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO notifications (user_id, type, message, is_read)
            VALUES ($1, $2, $3, FALSE)
            RETURNING id, is_read, created_at
        `, n.UserID, n.Type, n.Message).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}

		payload := contractsmq.NotificationCreatedPayload{
			NotificationID: n.ID,
			UserID:         n.UserID,
			Type:           n.Type,
			Message:        n.Message,
			CreatedAt:      n.CreatedAt,
			TraceID:        traceID,
		}
		_, err = outbox.InsertEventInTx(ctx, tx, "notification", n.ID, mq.RoutingKeyNotificationCreated, payload)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to insert notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return mapError(err, "notification")
	}

	r.logger.Info("Notification inserted successfully",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", n.UserID),
	)
	return nil
}

// ListByUser 最新的在前，最多 limit 条
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, type, message, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead 幂等：已读的通知也算命中；不存在或不属于该用户时返回 NotFound
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE notifications
        SET is_read = TRUE
        WHERE id = $1 AND user_id = $2
    `, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read",
			zap.Int64("notification_id", id),
			zap.Error(err),
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification %d", id)
	}
	return nil
}

// MarkAllRead 返回本次从未读变为已读的数量
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE notifications
        SET is_read = TRUE
        WHERE user_id = $1 AND is_read = FALSE
    `, userID)
	if err != nil {
		r.logger.Error("Failed to mark all notifications read", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}
	r.logger.Info("Notifications marked read",
		zap.Int64("user_id", userID),
		zap.Int64("updated", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE
    `, userID).Scan(&count)
	return count, err
}
