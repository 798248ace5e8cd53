package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "tasknexus/contracts/mq"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/metrics"
	"tasknexus/pkg/util"
)

const notificationDeliveryHandler = "notification_delivery"

// Deliverer 把通知推送给用户（站内轮询之外的渠道）
type Deliverer interface {
	Deliver(ctx context.Context, p mqcontracts.NotificationCreatedPayload) error
}

// LogDeliverer 只记录日志；客户端通过轮询 /api/notifications 获取通知
type LogDeliverer struct {
	logger *zap.Logger
}

func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(ctx context.Context, p mqcontracts.NotificationCreatedPayload) error {
	logger.WithTrace(ctx, d.logger).Info("Notification delivered",
		zap.Int64("notification_id", p.NotificationID),
		zap.Int64("user_id", p.UserID),
		zap.String("type", p.Type),
	)
	return nil
}

type NotificationCreatedHandler struct {
	deliverer Deliverer
	dedup     *util.Deduper
	logger    *zap.Logger
}

func NewNotificationCreatedHandler(deliverer Deliverer, dedup *util.Deduper, logger *zap.Logger) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		deliverer: deliverer,
		dedup:     dedup,
		logger:    logger,
	}
}

// Handle 每条通知只投递一次；投递失败释放幂等锁并返回错误以便重投
func (h *NotificationCreatedHandler) Handle(ctx context.Context, body []byte) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Error("Failed to unmarshal NotificationCreatedPayload", zap.Error(err))
		return util.Permanent(fmt.Errorf("decode notification.created: %w", err))
	}
	if p.NotificationID <= 0 || p.UserID <= 0 {
		return util.Permanent(fmt.Errorf("notification.created missing ids: notification=%d user=%d", p.NotificationID, p.UserID))
	}

	log.Info("Handling notification.created event",
		zap.Int64("notification_id", p.NotificationID),
		zap.Int64("user_id", p.UserID),
	)

	if !h.dedup.AcquireOnce(ctx, notificationDeliveryHandler, p.NotificationID) {
		metrics.IncrementNotificationDelivered(p.Type, "duplicate")
		return nil
	}

	if err := h.deliverer.Deliver(ctx, p); err != nil {
		h.dedup.Release(ctx, notificationDeliveryHandler, p.NotificationID)
		metrics.IncrementNotificationDelivered(p.Type, "failed")
		log.Error("Failed to deliver notification",
			zap.Int64("notification_id", p.NotificationID),
			zap.Error(err),
		)
		return err
	}

	metrics.IncrementNotificationDelivered(p.Type, "delivered")
	return nil
}
