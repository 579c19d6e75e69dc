package service

import (
	"errors"
	"fmt"
	"time"
)

// 业务错误定义，handler 层据此映射 HTTP 状态码
var (
	ErrBookNotFound     = errors.New("coupon book not found")
	ErrBookInactive     = errors.New("coupon book is not active")
	ErrBookExpired      = errors.New("coupon book has expired")
	ErrBookHasCodes     = errors.New("coupon book already has generated codes")
	ErrInvalidBookInput = errors.New("invalid coupon book input")

	ErrCodeNotFound          = errors.New("coupon code not found")
	ErrAssignmentNotFound    = errors.New("coupon assignment not found")
	ErrCodeNotAvailable      = errors.New("coupon code is not available")
	ErrCodeNotAssigned       = errors.New("coupon code is not assigned")
	ErrCodeExpiredStatus     = errors.New("coupon code has expired")
	ErrCodePoolExhausted     = errors.New("no available coupon codes in book")
	ErrCodeNoLongerAvailable = errors.New("coupon code is no longer available")
	ErrCodeQuotaExceeded     = errors.New("user has reached the code limit for this book")
	ErrInvalidCodeBatch      = errors.New("invalid coupon code batch")

	ErrNotCodeHolder       = errors.New("coupon code belongs to another user")
	ErrInvalidTransition   = errors.New("invalid coupon state transition")
	ErrCodeAlreadyLocked   = errors.New("coupon code is locked by another user")
	ErrCodeAlreadyRedeemed = errors.New("coupon code has already been redeemed")
	ErrRedeemLimitReached  = errors.New("redeem limit reached for this coupon code")
)

// LockConflictError 锁定冲突详情
type LockConflictError struct {
	CodeID            string
	LockedUntil       time.Time
	RetryAfterSeconds int
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("%s, retry after %ds", ErrCodeAlreadyLocked.Error(), e.RetryAfterSeconds)
}

// Unwrap 支持 errors.Is(err, ErrCodeAlreadyLocked)
func (e *LockConflictError) Unwrap() error {
	return ErrCodeAlreadyLocked
}

// RedeemedConflictError 已核销冲突详情
type RedeemedConflictError struct {
	CodeID      string
	RedeemedAt  *time.Time
	RedeemCount int
}

func (e *RedeemedConflictError) Error() string {
	return ErrCodeAlreadyRedeemed.Error()
}

// Unwrap 支持 errors.Is(err, ErrCodeAlreadyRedeemed)
func (e *RedeemedConflictError) Unwrap() error {
	return ErrCodeAlreadyRedeemed
}

// RedeemLimitError 核销次数超限详情
type RedeemLimitError struct {
	CodeID  string
	Current int
	Max     int
}

func (e *RedeemLimitError) Error() string {
	return fmt.Sprintf("%s (%d/%d)", ErrRedeemLimitReached.Error(), e.Current, e.Max)
}

// Unwrap 支持 errors.Is(err, ErrRedeemLimitReached)
func (e *RedeemLimitError) Unwrap() error {
	return ErrRedeemLimitReached
}
