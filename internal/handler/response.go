package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/pkg/logger"
)

// 认证中间件写入 gin.Context 的 key
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextEmail    = "email"
)

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}

// statusFor 错误类型 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError 4xx 返回错误描述，5xx 只返回通用信息
func writeError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := statusFor(err)
	log = logger.WithTrace(c.Request.Context(), log)
	if status == http.StatusInternalServerError {
		log.Error(op+": failed",
			zap.Int64("user_id", currentUserID(c)),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	log.Warn(op+": rejected",
		zap.Int64("user_id", currentUserID(c)),
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// parseID 解析正整数 id，非数字或 <= 0 为 ValidationError
func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// parseDate 支持 RFC3339 和 YYYY-MM-DD
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q", raw)
	}
	return t, nil
}

func bindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
