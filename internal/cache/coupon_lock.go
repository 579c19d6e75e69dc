package cache

import (
	"context"
	"fmt"
	"math"
	"time"
)

// CouponLock 券码锁定快照
// 仅作为数据库锁定窗口的加速层，未命中时回源数据库
type CouponLock struct {
	CodeID    string `json:"code_id"`
	UserID    string `json:"user_id"`
	LockedAt  int64  `json:"locked_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func couponLockKey(codeID string) string {
	return fmt.Sprintf("lock:code:%s", codeID)
}

// BuildCouponLock 构建券码锁定快照
func BuildCouponLock(codeID, userID string, lockedAt, expiresAt time.Time) *CouponLock {
	return &CouponLock{
		CodeID:    codeID,
		UserID:    userID,
		LockedAt:  lockedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
}

// RetryAfterSeconds 计算剩余锁定秒数，向上取整且不小于 1
func (l *CouponLock) RetryAfterSeconds(now time.Time) int {
	if l == nil {
		return 0
	}
	remaining := float64(l.ExpiresAt) - float64(now.Unix())
	if remaining <= 0 {
		return 1
	}
	return int(math.Ceil(remaining))
}

// GetCouponLock 获取券码锁定快照
func GetCouponLock(ctx context.Context, codeID string) (*CouponLock, bool, error) {
	if codeID == "" {
		return nil, false, nil
	}
	var lock CouponLock
	hit, err := GetJSON(ctx, couponLockKey(codeID), &lock)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &lock, true, nil
}

// SetCouponLock 写入券码锁定快照，TTL 与锁定窗口对齐
func SetCouponLock(ctx context.Context, lock *CouponLock) error {
	if lock == nil || lock.CodeID == "" {
		return nil
	}
	ttl := time.Until(time.Unix(lock.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, couponLockKey(lock.CodeID), lock, ttl)
}

// DelCouponLock 删除券码锁定快照
func DelCouponLock(ctx context.Context, codeID string) error {
	if codeID == "" {
		return nil
	}
	return Del(ctx, couponLockKey(codeID))
}
