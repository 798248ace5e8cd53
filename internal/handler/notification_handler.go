package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/model"
)

type NotificationLedger interface {
	List(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

type NotificationHandler struct {
	ledger NotificationLedger
	logger *zap.Logger
}

func NewNotificationHandler(ledger NotificationLedger, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{ledger: ledger, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.ledger.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "ListNotifications", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// UnreadCount 未读角标
// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.ledger.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "UnreadCount", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := parseID(c.Param("id"), "notification id")
	if err != nil {
		writeError(c, h.logger, "MarkRead", err)
		return
	}

	if err := h.ledger.MarkRead(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, h.logger, "MarkRead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.ledger.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "MarkAllRead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}
