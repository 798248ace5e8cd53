package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tasknexus/pkg/circuitbreaker"
	"tasknexus/pkg/metrics"
	"tasknexus/pkg/trace"
)

// Store Dispatcher 依赖的 outbox 存储操作
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
}

// Publisher 发布已序列化的事件
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, body []byte) error
}

// Dispatcher 定时从 outbox 读取事件并发布到 MQ
type Dispatcher struct {
	store      Store
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(store Store, publisher Publisher, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Dispatcher {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		breaker:    breaker,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start 阻塞运行直到 ctx 取消
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessPendingEvents(ctx)
		}
	}
}

// ProcessPendingEvents 处理一批待发送事件，返回成功发送的数量
func (d *Dispatcher) ProcessPendingEvents(ctx context.Context) int {
	events, err := d.store.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		err := d.breaker.Execute(func() error {
			return d.publishEvent(ctx, event)
		})

		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			// 熔断打开：剩余事件留在 pending，下个周期再试，不计入重试次数
			metrics.IncrementOutboxPublished(event.RoutingKey, "breaker_open")
			d.logger.Warn("Circuit breaker open, postponing outbox batch",
				zap.Int("remaining", len(events)-sent),
			)
			return sent
		}

		if err != nil {
			metrics.IncrementOutboxPublished(event.RoutingKey, "failed")
			d.logger.Error("Failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			if err := d.store.MarkAsFailed(ctx, event.ID, d.maxRetries); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("event_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		metrics.IncrementOutboxPublished(event.RoutingKey, "sent")
		if err := d.store.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
		d.logger.Debug("Event published successfully",
			zap.Int64("event_id", event.ID),
			zap.String("routing_key", event.RoutingKey),
		)
	}
	return sent
}

// publishEvent 发布单个事件，payload 中的 trace_id 透传到消息头
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	if traceID := traceIDFromPayload(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	if err := d.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload); err != nil {
		return fmt.Errorf("failed to publish to MQ: %w", err)
	}
	return nil
}
