package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/internal/service/task"
)

type TaskService interface {
	List(ctx context.Context, userID, projectID int64) ([]model.Task, error)
	Create(ctx context.Context, userID int64, in task.CreateInput) (*model.Task, error)
	Update(ctx context.Context, userID, taskID int64, upd model.TaskUpdate) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID int64) error
}

type TaskHandler struct {
	svc    TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	ProjectID   int64   `json:"project_id"`
	AssigneeID  *int64  `json:"assignee_id"`
}

// updateTaskRequest 中 due_date / assignee_id 显式为 null 表示清空
type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	DueDate     json.RawMessage `json:"due_date"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
	Completed   *bool           `json:"completed"`
}

var jsonNull = []byte("null")

func (r updateTaskRequest) toUpdate() (model.TaskUpdate, error) {
	upd := model.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Completed:   r.Completed,
	}

	switch {
	case len(r.DueDate) == 0:
	case bytes.Equal(r.DueDate, jsonNull):
		upd.ClearDue = true
	default:
		var raw string
		if err := json.Unmarshal(r.DueDate, &raw); err != nil {
			return upd, apperr.Validation("invalid due_date")
		}
		if raw == "" {
			upd.ClearDue = true
			break
		}
		due, err := parseDate(raw)
		if err != nil {
			return upd, err
		}
		upd.DueDate = &due
	}

	switch {
	case len(r.AssigneeID) == 0:
	case bytes.Equal(r.AssigneeID, jsonNull):
		upd.ClearAssign = true
	default:
		var id int64
		if err := json.Unmarshal(r.AssigneeID, &id); err != nil {
			return upd, apperr.Validation("invalid assignee_id")
		}
		upd.AssigneeID = &id
	}
	return upd, nil
}

func (h *TaskHandler) List(c *gin.Context) {
	var projectID int64
	if raw := c.Query("projectId"); raw != "" {
		id, err := parseID(raw, "projectId")
		if err != nil {
			writeError(c, h.logger, "ListTasks", err)
			return
		}
		projectID = id
	}

	tasks, err := h.svc.List(c.Request.Context(), currentUserID(c), projectID)
	if err != nil {
		writeError(c, h.logger, "ListTasks", err)
		return
	}

	h.logger.Debug("ListTasks: success",
		zap.Int64("user_id", currentUserID(c)),
		zap.Int("task_count", len(tasks)),
	)
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "CreateTask", err)
		return
	}

	in := task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
		AssigneeID:  req.AssigneeID,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			writeError(c, h.logger, "CreateTask", err)
			return
		}
		in.DueDate = &due
	}

	t, err := h.svc.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		writeError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"), "task id")
	if err != nil {
		writeError(c, h.logger, "UpdateTask", err)
		return
	}

	var req updateTaskRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "UpdateTask", err)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		writeError(c, h.logger, "UpdateTask", err)
		return
	}

	t, err := h.svc.Update(c.Request.Context(), currentUserID(c), id, upd)
	if err != nil {
		writeError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "task id")
	if err != nil {
		writeError(c, h.logger, "DeleteTask", err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, h.logger, "DeleteTask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}
