package model

import "time"

// 通知类型
const (
	NotificationInvite       = "invite"
	NotificationTaskAssigned = "task_assigned"
	NotificationDueDate      = "due_date"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
