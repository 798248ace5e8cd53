package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/trace"
)

// OverdueClaimer 认领一批逾期任务并在同一事务里写入 task.overdue outbox 事件
type OverdueClaimer interface {
	ClaimOverdue(ctx context.Context, limit int, traceID string) ([]model.Task, error)
}

type OverdueScanner struct {
	claimer   OverdueClaimer
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewOverdueScanner(claimer OverdueClaimer, interval time.Duration, batchSize int, logger *zap.Logger) *OverdueScanner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &OverdueScanner{
		claimer:   claimer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start 启动后立即扫描一次，之后按 interval 扫描，直到 ctx 取消
func (s *OverdueScanner) Start(ctx context.Context) {
	s.logger.Info("Starting overdue scanner",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Overdue scanner stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce 一直认领到没有剩余的逾期任务，返回本轮认领数
func (s *OverdueScanner) RunOnce(ctx context.Context) int {
	ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	log := logger.WithTrace(ctx, s.logger)

	total := 0
	for ctx.Err() == nil {
		tasks, err := s.claimer.ClaimOverdue(ctx, s.batchSize, trace.FromContext(ctx))
		if err != nil {
			log.Error("Overdue scan failed", zap.Error(err))
			break
		}
		total += len(tasks)
		if len(tasks) < s.batchSize {
			break
		}
	}

	if total > 0 {
		log.Info("Overdue scan completed", zap.Int("claimed", total))
	} else {
		log.Debug("No overdue tasks found")
	}
	return total
}
