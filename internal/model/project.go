package model

import "time"

const DefaultProjectColor = "#3B82F6"

type Project struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Color          string    `json:"color"`
	WorkspaceID    int64     `json:"workspace_id"`
	CreatedAt      time.Time `json:"created_at"`
	TaskCount      int       `json:"task_count"`
	CompletedCount int       `json:"completed_count"`
}
