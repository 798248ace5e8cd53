package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/model"
	"tasknexus/internal/service/auth"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type AuthHandler struct {
	svc    AuthService
	logger *zap.Logger
}

func NewAuthHandler(svc AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	h.logger.Info("Register request received", zap.String("client_ip", c.ClientIP()))

	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "Register", err)
		return
	}

	sess, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "Register", err)
		return
	}

	h.logger.Info("Register: success", zap.Int64("user_id", sess.User.ID))
	c.JSON(http.StatusCreated, sess)
}

func (h *AuthHandler) Login(c *gin.Context) {
	h.logger.Info("Login request received", zap.String("client_ip", c.ClientIP()))

	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, "Login", err)
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "Login", err)
		return
	}

	h.logger.Info("Login: success", zap.Int64("user_id", sess.User.ID))
	c.JSON(http.StatusOK, sess)
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, "Me", err)
		return
	}
	c.JSON(http.StatusOK, u)
}
