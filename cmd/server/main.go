package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/config"
	"tasknexus/internal/handler"
	"tasknexus/internal/httpserver"
	"tasknexus/internal/repository"
	"tasknexus/internal/service/analytics"
	"tasknexus/internal/service/auth"
	"tasknexus/internal/service/notification"
	"tasknexus/internal/service/project"
	"tasknexus/internal/service/task"
	"tasknexus/internal/service/workspace"
	"tasknexus/pkg/circuitbreaker"
	"tasknexus/pkg/db"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/mq"
	"tasknexus/pkg/otel"
	"tasknexus/pkg/outbox"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting tasknexus api server...",
		zap.String("env", os.Getenv("CONFIG_ENV")),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("port", cfg.Server.Port),
	)

	// OpenTelemetry
	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    "tasknexus-api",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
		SampleRatio:    1.0,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()
	if err := otel.InitHTTPMetrics(otel.Meter()); err != nil {
		log.Warn("Failed to init HTTP metrics", zap.Error(err))
	}

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(migrateCtx, dbConn, log); err != nil {
		migrateCancel()
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrateCancel()
	log.Info("Database ready")

	// MQ Publisher（outbox dispatcher 使用）
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()
	log.Info("MQ publisher initialized")

	// Repositories
	userRepo := repository.NewUserRepository(dbConn, log)
	workspaceRepo := repository.NewWorkspaceRepository(dbConn, log)
	memberRepo := repository.NewMemberRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn, log)

	// Services
	ledger := notification.NewLedger(notificationRepo, cfg.Notification.ListLimit, log)
	authService := auth.NewService(userRepo, workspaceRepo, projectRepo, cfg.JWT.Secret, cfg.TokenTTL(), log)
	workspaceService := workspace.NewService(workspaceRepo, memberRepo, projectRepo, taskRepo, userRepo, ledger, log)
	projectService := project.NewService(projectRepo, taskRepo, memberRepo, log)
	taskService := task.NewService(taskRepo, projectRepo, memberRepo, ledger, log)
	analyticsService := analytics.NewService(memberRepo, projectRepo, taskRepo, log)
	replayService := outbox.NewReplayService(outboxRepo, log)

	// Outbox Dispatcher
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, breaker, log).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(cfg.OutboxInterval()).
		WithBatchSize(cfg.Outbox.BatchSize)

	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Start(dispatcherCtx)
	}()

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	handlers := httpserver.Handlers{
		Auth:         handler.NewAuthHandler(authService, log),
		Workspace:    handler.NewWorkspaceHandler(workspaceService, log),
		Project:      handler.NewProjectHandler(projectService, log),
		Task:         handler.NewTaskHandler(taskService, log),
		Analytics:    handler.NewAnalyticsHandler(analyticsService, log),
		Notification: handler.NewNotificationHandler(ledger, log),
		Admin:        handler.NewAdminHandler(replayService, log),
	}
	router := httpserver.NewRouter(handlers, httpserver.Options{
		JWTSecret:  cfg.JWT.Secret,
		AdminToken: cfg.Admin.Token,
		DB:         dbConn,
		MQ:         publisher,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("tasknexus api server is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down api server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	dispatcherCancel()
	<-dispatcherDone
	log.Info("Outbox dispatcher stopped")

	log.Info("tasknexus api server shutdown complete")
}
