package model

import "time"

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ProjectID    int64      `json:"project_id"`
	AssigneeID   *int64     `json:"assignee_id"`
	AssigneeName *string    `json:"assignee_name,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	Completed    bool       `json:"completed"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TaskUpdate 部分更新，nil 字段保持不变
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	AssigneeID  *int64
	ClearAssign bool
	Completed   *bool
}

// Apply 把更新合并到 t；completed=true 同时把 status 置为 done
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.ClearDue {
		t.DueDate = nil
	} else if u.DueDate != nil {
		d := *u.DueDate
		t.DueDate = &d
	}
	if u.ClearAssign {
		t.AssigneeID = nil
	} else if u.AssigneeID != nil {
		a := *u.AssigneeID
		t.AssigneeID = &a
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
		if *u.Completed {
			t.Status = StatusDone
		}
	}
}
