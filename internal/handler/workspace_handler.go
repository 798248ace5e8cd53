package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/model"
)

type WorkspaceService interface {
	Create(ctx context.Context, ownerID int64, name, description string) (*model.Workspace, error)
	List(ctx context.Context, userID int64) ([]model.Workspace, error)
	Get(ctx context.Context, userID, workspaceID int64) (*model.Workspace, error)
	Members(ctx context.Context, userID, workspaceID int64) ([]model.WorkspaceMember, error)
	Delete(ctx context.Context, userID, workspaceID int64) error
	Invite(ctx context.Context, inviterID, workspaceID int64, email string) (*model.WorkspaceMember, error)
}

type WorkspaceHandler struct {
	svc    WorkspaceService
	logger *zap.Logger
}

func NewWorkspaceHandler(svc WorkspaceService, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc, logger: logger}
}

type createWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "ListWorkspaces", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "CreateWorkspace", err)
		return
	}

	ws, err := h.svc.Create(c.Request.Context(), currentUserID(c), req.Name, req.Description)
	if err != nil {
		writeError(c, h.logger, "CreateWorkspace", err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

func (h *WorkspaceHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "workspace id")
	if err != nil {
		writeError(c, h.logger, "GetWorkspace", err)
		return
	}

	ws, err := h.svc.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, h.logger, "GetWorkspace", err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "workspace id")
	if err != nil {
		writeError(c, h.logger, "DeleteWorkspace", err)
		return
	}

	h.logger.Info("DeleteWorkspace request received",
		zap.Int64("workspace_id", id),
		zap.String("client_ip", c.ClientIP()),
	)
	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, h.logger, "DeleteWorkspace", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "workspace deleted"})
}

func (h *WorkspaceHandler) Members(c *gin.Context) {
	id, err := parseID(c.Param("id"), "workspace id")
	if err != nil {
		writeError(c, h.logger, "ListMembers", err)
		return
	}

	members, err := h.svc.Members(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, h.logger, "ListMembers", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *WorkspaceHandler) Invite(c *gin.Context) {
	id, err := parseID(c.Param("id"), "workspace id")
	if err != nil {
		writeError(c, h.logger, "Invite", err)
		return
	}
	var req inviteRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "Invite", err)
		return
	}

	h.logger.Info("Invite request received",
		zap.Int64("workspace_id", id),
		zap.String("client_ip", c.ClientIP()),
	)
	member, err := h.svc.Invite(c.Request.Context(), currentUserID(c), id, req.Email)
	if err != nil {
		writeError(c, h.logger, "Invite", err)
		return
	}
	c.JSON(http.StatusCreated, member)
}
