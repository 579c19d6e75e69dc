package worker

import (
	"context"
	"errors"
	"time"

	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer, sweepInterval time.Duration) (*Service, error) {
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
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval,
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
	if s.consumer != nil && s.consumer.ExpiryService != nil {
		go s.runExpirySweepLoop(ctx)
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

// runExpirySweepLoop 周期性兜底清理，补偿延迟任务丢失的场景
func (s *Service) runExpirySweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.ExpiryService == nil {
		return
	}
	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	runOnce := func() {
		released, err := s.consumer.ExpiryService.ReleaseExpiredLocks(ctx)
		if err != nil {
			logger.Warnw("worker_expiry_sweep_release_failed", "error", err)
		} else if released > 0 {
			logger.Infow("worker_expiry_sweep_released", "count", released)
		}
		// 券册过期清理走队列，失败可由 asynq 重试
		if s.consumer.QueueClient != nil && s.consumer.QueueClient.Enabled() {
			if err := s.consumer.QueueClient.EnqueueBookExpireSweep(); err != nil {
				logger.Warnw("worker_expiry_sweep_enqueue_failed", "error", err)
			}
			return
		}
		expired, err := s.consumer.ExpiryService.ExpireBookCodes(ctx)
		if err != nil {
			logger.Warnw("worker_expiry_sweep_expire_failed", "error", err)
		} else if expired > 0 {
			logger.Infow("worker_expiry_sweep_expired", "count", expired)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
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
