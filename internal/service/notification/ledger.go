package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/metrics"
	"tasknexus/pkg/trace"
)

// DefaultListLimit 列表最多返回最近的 20 条
const DefaultListLimit = 20

// Store 通知持久化，由 repository.NotificationRepository 实现
type Store interface {
	Insert(ctx context.Context, n *model.Notification, traceID string) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// Ledger 按用户记录通知及已读状态；is_read 只会从 false 变为 true
type Ledger struct {
	store  Store
	limit  int
	logger *zap.Logger
}

func NewLedger(store Store, limit int, logger *zap.Logger) *Ledger {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return &Ledger{store: store, limit: limit, logger: logger}
}

// Record 追加一条未读通知
func (l *Ledger) Record(ctx context.Context, userID int64, notificationType, message string) (*model.Notification, error) {
	log := logger.WithTrace(ctx, l.logger)

	if userID <= 0 {
		return nil, apperr.Validation("invalid user id")
	}
	if strings.TrimSpace(notificationType) == "" || strings.TrimSpace(message) == "" {
		return nil, apperr.Validation("notification type and message are required")
	}

	n := &model.Notification{
		UserID:  userID,
		Type:    notificationType,
		Message: message,
	}
	if err := l.store.Insert(ctx, n, trace.FromContext(ctx)); err != nil {
		log.Error("Failed to record notification",
			zap.Int64("user_id", userID),
			zap.String("type", notificationType),
			zap.Error(err),
		)
		metrics.IncrementNotificationRecorded(notificationType, "failed")
		return nil, err
	}

	metrics.IncrementNotificationRecorded(notificationType, "success")
	log.Info("Notification recorded",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", userID),
		zap.String("type", notificationType),
	)
	return n, nil
}

// List 返回最新的通知（按创建时间倒序）；未登录用户返回空列表
func (l *Ledger) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	if userID <= 0 {
		return []model.Notification{}, nil
	}
	items, err := l.store.ListByUser(ctx, userID, l.limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

// MarkRead 幂等；id 不存在（或不属于该用户）返回 NotFound
func (l *Ledger) MarkRead(ctx context.Context, userID, notificationID int64) error {
	if notificationID <= 0 {
		return apperr.Validation("invalid notification id")
	}
	if userID <= 0 {
		return apperr.NotFound("notification %d", notificationID)
	}
	if err := l.store.MarkRead(ctx, notificationID, userID); err != nil {
		logger.WithTrace(ctx, l.logger).Warn("Failed to mark notification as read",
			zap.Int64("notification_id", notificationID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// MarkAllRead 幂等，返回本次由未读变为已读的数量
func (l *Ledger) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, nil
	}
	updated, err := l.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.WithTrace(ctx, l.logger).Info("Notifications marked as read",
		zap.Int64("user_id", userID),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

func (l *Ledger) UnreadCount(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, nil
	}
	return l.store.CountUnread(ctx, userID)
}
