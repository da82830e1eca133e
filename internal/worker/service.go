package worker

import (
	"context"
	"errors"
	"time"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	verdictCleanupInterval = time.Hour
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.VerdictRepo != nil {
		go s.runVerdictCleanupLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runVerdictCleanupLoop 周期清理过期的联系方式校验缓存
func (s *Service) runVerdictCleanupLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.VerdictRepo == nil {
		return
	}
	runOnce := func() {
		removed, err := s.consumer.VerdictRepo.DeleteExpired(time.Now())
		if err != nil {
			logger.Warnw("worker_verdict_cleanup_failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Infow("worker_verdict_cleanup_done", "removed", removed)
		}
	}
	runOnce()

	ticker := time.NewTicker(verdictCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
