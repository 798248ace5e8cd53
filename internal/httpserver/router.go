package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tasknexus/internal/handler"
	"tasknexus/pkg/otel"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker MQ 连接状态，readyz 使用
type ConnChecker interface {
	IsConnected() bool
}

type Handlers struct {
	Auth         *handler.AuthHandler
	Workspace    *handler.WorkspaceHandler
	Project      *handler.ProjectHandler
	Task         *handler.TaskHandler
	Analytics    *handler.AnalyticsHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
}

// Options 中 DB、MQ 可为 nil，readyz 跳过对应检查
type Options struct {
	JWTSecret  string
	AdminToken string
	DB         Pinger
	MQ         ConnChecker
	Logger     *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, opts Options) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(opts.Logger))

	// Health endpoints (放在最前面)
	registerHealth(r, opts)

	api := r.Group("/api")

	// Public
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	// Protected
	protected := api.Group("")
	protected.Use(AuthMiddleware(opts.JWTSecret))
	{
		protected.GET("/auth/me", h.Auth.Me)

		protected.GET("/workspaces", h.Workspace.List)
		protected.POST("/workspaces", h.Workspace.Create)
		protected.GET("/workspaces/:id", h.Workspace.Get)
		protected.DELETE("/workspaces/:id", h.Workspace.Delete)
		protected.GET("/workspaces/:id/members", h.Workspace.Members)
		protected.POST("/workspaces/:id/invite", h.Workspace.Invite)

		protected.GET("/projects/workspace/:workspaceId", h.Project.ListByWorkspace)
		protected.GET("/projects/:id", h.Project.Get)
		protected.POST("/projects", h.Project.Create)
		protected.DELETE("/projects/:id", h.Project.Delete)

		protected.GET("/tasks", h.Task.List)
		protected.POST("/tasks", h.Task.Create)
		protected.PUT("/tasks/:id", h.Task.Update)
		protected.DELETE("/tasks/:id", h.Task.Delete)

		protected.GET("/analytics/dashboard", h.Analytics.Dashboard)

		protected.GET("/notifications", h.Notification.List)
		protected.GET("/notifications/unread-count", h.Notification.UnreadCount)
		protected.PUT("/notifications/read-all", h.Notification.MarkAllRead)
		protected.PUT("/notifications/:id/read", h.Notification.MarkRead)
	}

	if h.Admin != nil {
		admin := api.Group("/admin")
		admin.Use(AdminMiddleware(opts.AdminToken))
		{
			admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
			admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

// NewHealthRouter worker 进程只暴露健康检查和指标
func NewHealthRouter(opts Options) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	registerHealth(r, opts)
	return &Router{Engine: r}
}

func registerHealth(r *gin.Engine, opts Options) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(opts))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func readyHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if opts.DB != nil {
			if err := opts.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
				return
			}
		}
		if opts.MQ != nil && !opts.MQ.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
