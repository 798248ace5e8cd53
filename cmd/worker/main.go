package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/config"
	"tasknexus/internal/httpserver"
	"tasknexus/internal/mqhandler"
	"tasknexus/internal/repository"
	"tasknexus/internal/runner"
	"tasknexus/internal/service/notification"
	"tasknexus/pkg/db"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/mq"
	"tasknexus/pkg/otel"
	redisclient "tasknexus/pkg/redis"
	"tasknexus/pkg/util"
)

const (
	notificationCreatedQueue = "notification.created.q"
	taskOverdueQueue         = "task.overdue.q"
)

// consumerSet readyz 要求所有 consumer 都在线
type consumerSet []*mq.Consumer

func (s consumerSet) IsConnected() bool {
	for _, c := range s {
		if !c.IsConnected() {
			return false
		}
	}
	return true
}

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting tasknexus worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("port", cfg.Worker.Port),
	)

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    "tasknexus-worker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
		SampleRatio:    1.0,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis（幂等 + 重试计数）
	rdb, err := redisclient.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, cfg.DedupTTL(), log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// Repositories / Services
	taskRepo := repository.NewTaskRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	ledger := notification.NewLedger(notificationRepo, cfg.Notification.ListLimit, log)

	// MQ Handlers
	notificationCreatedHandler := mqhandler.NewNotificationCreatedHandler(mqhandler.NewLogDeliverer(log), deduper, log)
	taskOverdueHandler := mqhandler.NewTaskOverdueHandler(ledger, deduper, retryCounter, cfg.Notification.RetryMax, log)

	// Consumers
	log.Info("Initializing MQ consumer for notification.created...", zap.String("queue", notificationCreatedQueue))
	notificationConsumer, err := mq.NewConsumer(cfg.MQ.URL, notificationCreatedQueue, mq.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Failed to init notification.created consumer", zap.Error(err))
	}
	defer notificationConsumer.Close()
	notificationConsumer.SetHandler(notificationCreatedHandler.Handle)

	log.Info("Initializing MQ consumer for task.overdue...", zap.String("queue", taskOverdueQueue))
	overdueConsumer, err := mq.NewConsumer(cfg.MQ.URL, taskOverdueQueue, mq.RoutingKeyTaskOverdue, log)
	if err != nil {
		log.Fatal("Failed to init task.overdue consumer", zap.Error(err))
	}
	defer overdueConsumer.Close()
	overdueConsumer.SetHandler(taskOverdueHandler.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for name, c := range map[string]*mq.Consumer{
		mq.RoutingKeyNotificationCreated: notificationConsumer,
		mq.RoutingKeyTaskOverdue:         overdueConsumer,
	} {
		wg.Add(1)
		go func(name string, c *mq.Consumer) {
			defer wg.Done()
			log.Info("Starting consumer", zap.String("routing_key", name))
			if err := c.StartConsuming(ctx); err != nil {
				log.Error("Consumer stopped with error", zap.String("routing_key", name), zap.Error(err))
			}
		}(name, c)
	}

	// Overdue scanner
	scanner := runner.NewOverdueScanner(taskRepo, cfg.OverdueInterval(), cfg.Runner.OverdueBatchSize, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner.Start(ctx)
	}()

	// HTTP Server (for health checks)
	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewHealthRouter(httpserver.Options{
		DB:     dbConn,
		MQ:     consumerSet{notificationConsumer, overdueConsumer},
		Logger: log,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Worker.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Health server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Health server failed", zap.Error(err))
		}
	}()

	log.Info("tasknexus worker is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker gracefully...")
	cancel()
	wg.Wait()
	log.Info("Consumers and scanner stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}

	log.Info("tasknexus worker shutdown complete")
}
