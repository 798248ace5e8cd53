package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayStore ReplayService 依赖的存储操作
type ReplayStore interface {
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetEvent(ctx context.Context, eventID int64) error
}

// ReplayService 将事件重置为 pending，由 Dispatcher 重新投递
type ReplayService struct {
	store  ReplayStore
	logger *zap.Logger
}

func NewReplayService(store ReplayStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, logger: logger}
}

// ReplayEvent 重放指定事件，已发送的事件也可以重放
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) (*Event, error) {
	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.store.ResetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to replay event %d: %w", eventID, err)
	}

	s.logger.Info("Outbox event scheduled for replay",
		zap.Int64("event_id", eventID),
		zap.String("routing_key", event.RoutingKey),
		zap.String("previous_status", event.Status),
	)
	event.Status = StatusPending
	event.RetryCount = 0
	event.NextRetryAt = nil
	return event, nil
}

// ReplayFailedEvents 重放最多 limit 个失败事件，返回成功重置的数量
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.store.ResetEvent(ctx, event.ID); err != nil {
			s.logger.Error("Failed to replay event",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		replayed++
	}

	s.logger.Info("Replayed failed outbox events",
		zap.Int("requested", limit),
		zap.Int("found", len(events)),
		zap.Int("replayed", replayed),
	)
	return replayed, nil
}
