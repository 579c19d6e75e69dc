package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/provider"
	"github.com/coupon-next/internal/queue"
	"github.com/coupon-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskLockSweep, c.handleLockSweep)
	mux.HandleFunc(queue.TaskBookExpireSweep, c.handleBookExpireSweep)
}

func (c *Consumer) handleLockSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_lock_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.LockSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_lock_sweep_unmarshal_failed", "error", err)
		return err
	}
	if payload.CodeID == "" {
		logger.Debugw("worker_lock_sweep_skip_invalid_payload", "code_id", payload.CodeID)
		return nil
	}
	if c.ExpiryService == nil {
		logger.Warnw("worker_lock_sweep_skip_expiry_service_nil", "code_id", payload.CodeID)
		return nil
	}
	released, err := c.ExpiryService.ReleaseLockIfExpired(ctx, payload.CodeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			logger.Debugw("worker_lock_sweep_skip_code_not_found", "code_id", payload.CodeID)
			return nil
		case errors.Is(err, service.ErrAssignmentNotFound):
			logger.Debugw("worker_lock_sweep_skip_assignment_not_found", "code_id", payload.CodeID)
			return nil
		default:
			logger.Warnw("worker_lock_sweep_failed", "code_id", payload.CodeID, "error", err)
			return err
		}
	}
	if released {
		logger.Infow("worker_lock_sweep_released", "code_id", payload.CodeID)
	}
	return nil
}

func (c *Consumer) handleBookExpireSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_book_expire_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.ExpiryService == nil {
		logger.Warnw("worker_book_expire_sweep_skip_expiry_service_nil")
		return nil
	}
	expired, err := c.ExpiryService.ExpireBookCodes(ctx)
	if err != nil {
		logger.Warnw("worker_book_expire_sweep_failed", "error", err)
		return err
	}
	if expired > 0 {
		logger.Infow("worker_book_expire_sweep_done", "expired_codes", expired)
	}
	return nil
}
