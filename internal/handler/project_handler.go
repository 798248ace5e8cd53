package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/model"
	"tasknexus/internal/service/project"
)

type ProjectService interface {
	ListByWorkspace(ctx context.Context, userID, workspaceID int64) ([]model.Project, error)
	Get(ctx context.Context, userID, projectID int64) (*model.Project, error)
	Create(ctx context.Context, userID int64, in project.CreateInput) (*model.Project, error)
	Delete(ctx context.Context, userID, projectID int64) error
}

type ProjectHandler struct {
	svc    ProjectService
	logger *zap.Logger
}

func NewProjectHandler(svc ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	WorkspaceID int64  `json:"workspaceId"`
}

func (h *ProjectHandler) ListByWorkspace(c *gin.Context) {
	wsID, err := parseID(c.Param("workspaceId"), "workspace id")
	if err != nil {
		writeError(c, h.logger, "ListProjects", err)
		return
	}

	items, err := h.svc.ListByWorkspace(c.Request.Context(), currentUserID(c), wsID)
	if err != nil {
		writeError(c, h.logger, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "project id")
	if err != nil {
		writeError(c, h.logger, "GetProject", err)
		return
	}

	p, err := h.svc.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "CreateProject", err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), currentUserID(c), project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		WorkspaceID: req.WorkspaceID,
	})
	if err != nil {
		writeError(c, h.logger, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "project id")
	if err != nil {
		writeError(c, h.logger, "DeleteProject", err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, h.logger, "DeleteProject", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}
