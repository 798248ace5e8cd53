package mq

import "time"

// NotificationCreatedPayload notification.created 事件，由 ledger 写入 outbox
type NotificationCreatedPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}
