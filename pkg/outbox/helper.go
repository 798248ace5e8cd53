package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertEventInTx 序列化 payload 并在事务中写入 outbox
func InsertEventInTx(
	ctx context.Context,
	tx pgx.Tx,
	aggregateType string,
	aggregateID int64,
	routingKey string,
	payload interface{},
) (*Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}
	if err := InsertEvent(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// traceIDFromPayload 读取 payload 中的 trace_id，没有则返回空串
func traceIDFromPayload(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}
