package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/pkg/outbox"
)

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) (*outbox.Event, error)
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type AdminHandler struct {
	replay OutboxReplayer
	logger *zap.Logger
}

func NewAdminHandler(replay OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replay: replay, logger: logger}
}

// ReplayOutboxEvent 重放指定的 Outbox 事件
// POST /api/admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	eventID, err := parseID(idStr, "id parameter")
	if err != nil {
		writeError(c, h.logger, "ReplayOutboxEvent", err)
		return
	}

	event, err := h.replay.ReplayEvent(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "replayed",
		"event_id":    eventID,
		"routing_key": event.RoutingKey,
	})
}

// ReplayFailedEvents 重放失败的事件
// POST /api/admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	replayed, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "completed",
		"replayed_count": replayed,
		"limit":          limit,
	})
}
