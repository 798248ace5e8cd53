package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/model"
)

type DashboardService interface {
	Dashboard(ctx context.Context, userID int64) (model.DashboardSnapshot, error)
}

type AnalyticsHandler struct {
	svc    DashboardService
	logger *zap.Logger
}

func NewAnalyticsHandler(svc DashboardService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	snap, err := h.svc.Dashboard(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "Dashboard", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
