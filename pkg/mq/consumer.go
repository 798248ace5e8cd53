package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tasknexus/pkg/metrics"
	"tasknexus/pkg/otel"
	"tasknexus/pkg/trace"
	"tasknexus/pkg/util"
)

// MessageHandler 处理一条消息，ctx 中带有从消息头恢复的 trace_id
type MessageHandler func(ctx context.Context, body []byte) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key, with a matching DLQ.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare dlq exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// IsConnected 连接和 channel 都未关闭
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.queue.Name)
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := messageContext(parent, msg.Headers)
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)
	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	// Panic 恢复：handler panic 时拒绝消息并重新入队
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))

	if err == nil {
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
			return
		}
		log.Debug("Message processed successfully")
		return
	}

	span.RecordError(err)
	requeue, errType := classifyFailure(err)
	if requeue {
		log.Warn("Handler error, requeueing", zap.String("error_type", errType), zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	log.Error("Handler error, moving to DLQ", zap.String("error_type", errType), zap.Error(err))
	if dlqErr := publishToDLQ(ctx, c.channel, c.queue.Name, msg, errType, err); dlqErr != nil {
		log.Error("Failed to publish to DLQ, requeueing", zap.Error(dlqErr))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message after DLQ", zap.Error(err))
	}
}

// classifyFailure 可重试的错误重新入队，其余进入死信队列
func classifyFailure(err error) (requeue bool, errType string) {
	retryable, errType := util.IsRetryableError(err)
	return retryable, errType
}

// messageContext 从消息头恢复 trace_id 和 otel trace context
func messageContext(parent context.Context, headers amqp091.Table) context.Context {
	ctx := otel.GetTextMapPropagator().Extract(parent, otel.NewMQHeaderCarrier(headers))

	traceID, _ := headers[HeaderTraceID].(string)
	if traceID == "" {
		traceID = trace.GenerateTraceID()
	}
	return trace.WithContext(ctx, traceID)
}
