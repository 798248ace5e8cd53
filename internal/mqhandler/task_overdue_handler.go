package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "tasknexus/contracts/mq"
	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/util"
)

const overdueReminderHandler = "overdue_reminder"

// Recorder 通知账本
type Recorder interface {
	Record(ctx context.Context, userID int64, notificationType, message string) (*model.Notification, error)
}

// TaskOverdueHandler 给逾期任务的指派人写一条 due_date 通知，每个任务只提醒一次
type TaskOverdueHandler struct {
	ledger     Recorder
	dedup      *util.Deduper
	retries    *util.RetryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewTaskOverdueHandler(ledger Recorder, dedup *util.Deduper, retries *util.RetryCounter, maxRetries int, logger *zap.Logger) *TaskOverdueHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TaskOverdueHandler{
		ledger:     ledger,
		dedup:      dedup,
		retries:    retries,
		maxRetries: int64(maxRetries),
		logger:     logger,
	}
}

func (h *TaskOverdueHandler) Handle(ctx context.Context, body []byte) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.TaskOverduePayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Error("Failed to unmarshal TaskOverduePayload", zap.Error(err))
		return util.Permanent(fmt.Errorf("decode task.overdue: %w", err))
	}
	if p.TaskID <= 0 || p.AssigneeID <= 0 {
		return util.Permanent(fmt.Errorf("task.overdue missing ids: task=%d assignee=%d", p.TaskID, p.AssigneeID))
	}

	log.Info("Handling task.overdue event",
		zap.Int64("task_id", p.TaskID),
		zap.Int64("assignee_id", p.AssigneeID),
	)

	// 改期后任务会被重新认领，幂等键带上 due_date 才能每个截止日期提醒一次
	dedupHandler := fmt.Sprintf("%s:%d", overdueReminderHandler, p.DueDate.Unix())
	if !h.dedup.AcquireOnce(ctx, dedupHandler, p.TaskID) {
		return nil
	}

	retryKey := util.FormatRetryKey(dedupHandler, p.TaskID)
	message := fmt.Sprintf("Task %q is overdue (due %s)", p.Title, p.DueDate.UTC().Format("2006-01-02"))
	if _, err := h.ledger.Record(ctx, p.AssigneeID, model.NotificationDueDate, message); err != nil {
		h.dedup.Release(ctx, dedupHandler, p.TaskID)

		if errors.Is(err, apperr.ErrValidation) {
			return util.Permanent(err)
		}
		// 约束冲突重试也不会成功，直接进 DLQ
		if _, errType := util.IsRetryableError(err); errType == "duplicate_key" || errType == "constraint_violation" {
			return util.Permanent(err)
		}

		count, cerr := h.retries.IncrementAndGet(ctx, retryKey)
		if cerr != nil {
			log.Warn("Failed to increment retry counter", zap.String("key", retryKey), zap.Error(cerr))
		}
		if !util.ShouldRetry(count, h.maxRetries, true) {
			_ = h.retries.Reset(ctx, retryKey)
			log.Error("Overdue reminder retries exhausted",
				zap.Int64("task_id", p.TaskID),
				zap.Int64("attempts", count),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", util.ErrRetriesExhausted, err)
		}
		log.Warn("Failed to record overdue reminder, will retry",
			zap.Int64("task_id", p.TaskID),
			zap.Int64("attempt", count),
			zap.Error(err),
		)
		return util.Retryable(err)
	}

	_ = h.retries.Reset(ctx, retryKey)
	log.Info("Overdue reminder recorded", zap.Int64("task_id", p.TaskID), zap.Int64("assignee_id", p.AssigneeID))
	return nil
}
