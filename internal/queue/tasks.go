package queue

import (
	"encoding/json"

	"github.com/coupon-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskLockSweep 锁定超时清理任务
	TaskLockSweep = constants.TaskLockSweep
	// TaskBookExpireSweep 券册过期清理任务
	TaskBookExpireSweep = constants.TaskBookExpireSweep
)

// LockSweepPayload 锁定超时清理任务载荷
type LockSweepPayload struct {
	CodeID string `json:"code_id"`
}

// BookExpireSweepPayload 券册过期清理任务载荷
type BookExpireSweepPayload struct{}

// NewLockSweepTask 创建锁定超时清理任务
func NewLockSweepTask(payload LockSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLockSweep, body), nil
}

// NewBookExpireSweepTask 创建券册过期清理任务
func NewBookExpireSweepTask() (*asynq.Task, error) {
	body, err := json.Marshal(BookExpireSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookExpireSweep, body), nil
}
