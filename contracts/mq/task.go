package mq

import "time"

// TaskOverduePayload task.overdue 事件，由 overdue scanner 写入 outbox
type TaskOverduePayload struct {
	TaskID     int64     `json:"task_id"`
	ProjectID  int64     `json:"project_id"`
	AssigneeID int64     `json:"assignee_id"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"due_date"`
	TraceID    string    `json:"trace_id,omitempty"`
}
